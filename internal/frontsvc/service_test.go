package frontsvc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/forgecheck/grader/internal/bus"
	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
)

type fakeBus struct {
	requestFn func(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error)
	oneWayFn  func(ctx context.Context, op string, header any) error
}

func (f *fakeBus) Request(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error) {
	return f.requestFn(ctx, op, header, body, timeout)
}

func (f *fakeBus) PublishOneWay(ctx context.Context, op string, header any) error {
	return f.oneWayFn(ctx, op, header)
}

type fakeMessageStore struct {
	inserted  []domain.MessageRequest
	completed map[string][]byte
	failed    map[string][]byte
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{completed: map[string][]byte{}, failed: map[string][]byte{}}
}

func (s *fakeMessageStore) Insert(ctx context.Context, msg domain.MessageRequest) error {
	s.inserted = append(s.inserted, msg)
	return nil
}

func (s *fakeMessageStore) Complete(ctx context.Context, id string, payload []byte, completedAt time.Time) error {
	s.completed[id] = payload
	return nil
}

func (s *fakeMessageStore) Fail(ctx context.Context, id string, payload []byte, completedAt time.Time) error {
	s.failed[id] = payload
	return nil
}

func newTestService(b Bus, store MessageStore) *Service {
	return New(b, store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
}

func TestUploadProject(t *testing.T) {
	t.Run("success returns baseline tests as an execution", func(t *testing.T) {
		reply, _ := json.Marshal(bus.ProjectUploadReply{Status: "ok", BaselineTests: []string{"testFoo", "testBar"}, ImageID: "sha256:abc"})
		store := newFakeMessageStore()
		svc := newTestService(&fakeBus{requestFn: func(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error) {
			if op != opProjectUpload {
				t.Fatalf("unexpected op: %s", op)
			}
			return reply, nil
		}}, store)

		execution, err := svc.UploadProject(context.Background(), "myproj", []byte("zip"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(execution.Output.Tests) != 2 {
			t.Fatalf("expected 2 baseline tests, got %d", len(execution.Output.Tests))
		}
		if len(store.completed) != 1 {
			t.Fatalf("expected message request marked complete")
		}
	})

	t.Run("runner error reply becomes a typed error", func(t *testing.T) {
		reply, _ := json.Marshal(bus.ProjectUploadReply{Status: "error", Kind: string(errkind.ImageBuild), Message: "build failed"})
		svc := newTestService(&fakeBus{requestFn: func(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error) {
			return reply, nil
		}}, newFakeMessageStore())

		_, err := svc.UploadProject(context.Background(), "myproj", []byte("zip"))
		kindErr, ok := errkind.As(err)
		if !ok || kindErr.Kind != errkind.ImageBuild {
			t.Fatalf("expected IMAGE_BUILD error, got %v", err)
		}
	})

	t.Run("publisher timeout marks the message request failed", func(t *testing.T) {
		store := newFakeMessageStore()
		svc := newTestService(&fakeBus{requestFn: func(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error) {
			return nil, bus.ErrTimeoutWaitingForRunner
		}}, store)

		_, err := svc.UploadProject(context.Background(), "myproj", []byte("zip"))
		kindErr, ok := errkind.As(err)
		if !ok || kindErr.Kind != errkind.TimeoutWaitingForRunner {
			t.Fatalf("expected TIMEOUT_WAITING_FOR_RUNNER error, got %v", err)
		}
		if len(store.failed) != 1 {
			t.Fatalf("expected message request marked failed")
		}
	})
}

func TestExecuteSubmission(t *testing.T) {
	t.Run("success decodes the execution record", func(t *testing.T) {
		execution := domain.ContainerExecution{ID: "exec-1", Project: "myproj", Status: domain.StatusSuccess}
		reply, _ := json.Marshal(execution)
		svc := newTestService(&fakeBus{requestFn: func(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error) {
			if op != opSubmissionExecute {
				t.Fatalf("unexpected op: %s", op)
			}
			h, ok := header.(bus.SubmissionExecuteHeader)
			if !ok || h.ProjectName != "myproj" {
				t.Fatalf("unexpected header: %+v", header)
			}
			return reply, nil
		}}, newFakeMessageStore())

		got, err := svc.ExecuteSubmission(context.Background(), "myproj", []byte("zip"), map[string]string{"matchTest": "testFoo"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "exec-1" {
			t.Fatalf("unexpected execution: %+v", got)
		}
	})
}

func TestRemoveProject(t *testing.T) {
	t.Run("publishes a one-way project-removal message", func(t *testing.T) {
		var published bool
		svc := newTestService(&fakeBus{oneWayFn: func(ctx context.Context, op string, header any) error {
			published = true
			if op != opProjectRemoval {
				t.Fatalf("unexpected op: %s", op)
			}
			return nil
		}}, newFakeMessageStore())

		if err := svc.RemoveProject(context.Background(), "myproj"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !published {
			t.Fatalf("expected project-removal to be published")
		}
	})
}
