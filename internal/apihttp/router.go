// Package apihttp is the front service's HTTP ingress: project template
// upload, submission execute, and project removal, each forwarded to the
// runner over the bus by the injected Service.
package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
)

// ProjectConfig is the optional JSON part accompanying a submission upload.
type ProjectConfig struct {
	ContainerTimeout       *int              `json:"containerTimeout,omitempty"`
	TestExecutionArguments map[string]string `json:"testExecutionArguments,omitempty"`
}

// Service is what the front service's core exposes to HTTP handlers.
type Service interface {
	UploadProject(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error)
	ExecuteSubmission(ctx context.Context, projectName string, archive []byte, execArgs map[string]string) (domain.ContainerExecution, error)
	RemoveProject(ctx context.Context, name string) error
}

const maxUploadMemory = 32 << 20

// Router exposes the front service's HTTP endpoints.
type Router struct {
	mux    *http.ServeMux
	logger *slog.Logger
	svc    Service

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New creates and registers handlers.
func New(logger *slog.Logger, svc Service) *Router {
	r := &Router{mux: http.NewServeMux(), logger: logger, svc: svc}
	r.initMetrics()
	r.routes()
	return r
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) routes() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("POST /projects/{name}", r.instrument("POST /projects/{name}", r.handleProjectUpload))
	r.mux.HandleFunc("DELETE /projects/{name}", r.instrument("DELETE /projects/{name}", r.handleProjectDelete))
	r.mux.HandleFunc("POST /submissions/{projectName}", r.instrument("POST /submissions/{projectName}", r.handleSubmissionExecute))
}

func (r *Router) handleProjectUpload(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	archive, _, err := readUploadPart(req, "projectZip")
	if err != nil {
		r.writeErr(w, errkind.New(errkind.BadInput, err.Error()))
		return
	}

	execution, err := r.svc.UploadProject(req.Context(), name, archive)
	if err != nil {
		r.writeErr(w, err)
		return
	}
	r.writeJSON(w, http.StatusCreated, execution)
}

func (r *Router) handleSubmissionExecute(w http.ResponseWriter, req *http.Request) {
	projectName := req.PathValue("projectName")
	archive, form, err := readUploadPart(req, "srcZip")
	if err != nil {
		r.writeErr(w, errkind.New(errkind.BadInput, err.Error()))
		return
	}

	var cfg ProjectConfig
	if raw := formValue(form, "projectConfig"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			r.writeErr(w, errkind.New(errkind.BadInput, "malformed projectConfig JSON"))
			return
		}
	}

	execution, err := r.svc.ExecuteSubmission(req.Context(), projectName, archive, cfg.TestExecutionArguments)
	if err != nil {
		r.writeErr(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, execution)
}

func (r *Router) handleProjectDelete(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	if err := r.svc.RemoveProject(req.Context(), name); err != nil {
		r.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readUploadPart(req *http.Request, field string) ([]byte, *multipart.Form, error) {
	if err := req.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, nil, err
	}
	file, _, err := req.FormFile(field)
	if err != nil {
		return nil, req.MultipartForm, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, req.MultipartForm, err
	}
	return data, req.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if form == nil {
		return ""
	}
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}

func (r *Router) writeErr(w http.ResponseWriter, err error) {
	payload := errkind.ToPayload(err)
	r.writeJSON(w, payload.Kind.HTTPStatus(), payload)
}
