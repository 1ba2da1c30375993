package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
)

type fakeService struct {
	uploadFn  func(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error)
	execFn    func(ctx context.Context, projectName string, archive []byte, execArgs map[string]string) (domain.ContainerExecution, error)
	removeFn  func(ctx context.Context, name string) error
}

func (f *fakeService) UploadProject(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error) {
	return f.uploadFn(ctx, name, archive)
}

func (f *fakeService) ExecuteSubmission(ctx context.Context, projectName string, archive []byte, execArgs map[string]string) (domain.ContainerExecution, error) {
	return f.execFn(ctx, projectName, archive, execArgs)
}

func (f *fakeService) RemoveProject(ctx context.Context, name string) error {
	return f.removeFn(ctx, name)
}

func multipartBody(t *testing.T, field, filename string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range extra {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

func TestHandleProjectUpload(t *testing.T) {
	t.Run("success returns 201 with the execution", func(t *testing.T) {
		svc := &fakeService{
			uploadFn: func(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error) {
				if name != "myproj" || string(archive) != "zipbytes" {
					t.Fatalf("unexpected args: name=%s archive=%s", name, archive)
				}
				return domain.ContainerExecution{ID: "exec-1", Project: name}, nil
			},
		}
		router := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		body, contentType := multipartBody(t, "projectZip", "template.zip", []byte("zipbytes"), nil)
		req := httptest.NewRequest(http.MethodPost, "/projects/myproj", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var got domain.ContainerExecution
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if got.ID != "exec-1" {
			t.Fatalf("unexpected body: %+v", got)
		}
	})

	t.Run("service error maps through errkind to the right status", func(t *testing.T) {
		svc := &fakeService{
			uploadFn: func(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error) {
				return domain.ContainerExecution{}, errkind.New(errkind.ImageBuild, "build failed")
			},
		}
		router := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		body, contentType := multipartBody(t, "projectZip", "template.zip", []byte("zipbytes"), nil)
		req := httptest.NewRequest(http.MethodPost, "/projects/myproj", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("missing upload part is a bad request", func(t *testing.T) {
		svc := &fakeService{}
		router := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		body, contentType := multipartBody(t, "wrongField", "template.zip", []byte("zipbytes"), nil)
		req := httptest.NewRequest(http.MethodPost, "/projects/myproj", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleSubmissionExecute(t *testing.T) {
	t.Run("forwards execution args from projectConfig", func(t *testing.T) {
		var gotArgs map[string]string
		svc := &fakeService{
			execFn: func(ctx context.Context, projectName string, archive []byte, execArgs map[string]string) (domain.ContainerExecution, error) {
				gotArgs = execArgs
				return domain.ContainerExecution{ID: "exec-2", Project: projectName}, nil
			},
		}
		router := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		cfg := `{"testExecutionArguments":{"matchTest":"testFoo"}}`
		body, contentType := multipartBody(t, "srcZip", "src.zip", []byte("srcbytes"), map[string]string{"projectConfig": cfg})
		req := httptest.NewRequest(http.MethodPost, "/submissions/myproj", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotArgs["matchTest"] != "testFoo" {
			t.Fatalf("expected execution args forwarded, got %v", gotArgs)
		}
	})
}

func TestHandleProjectDelete(t *testing.T) {
	t.Run("success returns 204", func(t *testing.T) {
		svc := &fakeService{
			removeFn: func(ctx context.Context, name string) error { return nil },
		}
		router := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		req := httptest.NewRequest(http.MethodDelete, "/projects/myproj", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		svc := &fakeService{
			removeFn: func(ctx context.Context, name string) error {
				return errkind.New(errkind.NotFound, "no such project")
			},
		}
		router := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		req := httptest.NewRequest(http.MethodDelete, "/projects/ghost", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
