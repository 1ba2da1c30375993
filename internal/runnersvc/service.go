// Package runnersvc wires the bus's three logical channels to the Image
// Manager and Submission Controller: it is the runner's top-level service.
package runnersvc

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/forgecheck/grader/internal/bus"
	"github.com/forgecheck/grader/internal/errkind"
	"github.com/forgecheck/grader/internal/image"
	"github.com/forgecheck/grader/internal/submission"
)

// Service handles the three bus operations the runner owns: building
// project images, executing submissions, and removing projects.
type Service struct {
	images      *image.Manager
	submissions *submission.Controller
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]map[string]context.CancelFunc
}

// New builds a Service.
func New(images *image.Manager, submissions *submission.Controller, logger *slog.Logger) *Service {
	return &Service{
		images:      images,
		submissions: submissions,
		logger:      logger,
		inFlight:    make(map[string]map[string]context.CancelFunc),
	}
}

// HandleProjectUpload builds the named project's image from the archive
// bytes carried as the message body.
func (s *Service) HandleProjectUpload(ctx context.Context, headerJSON, body []byte) ([]byte, error) {
	var header bus.ProjectUploadHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return marshalUploadError(errkind.New(errkind.BadInput, "malformed project-upload header"))
	}

	result, err := s.images.Build(ctx, header.ProjectName, body)
	if err != nil {
		return marshalUploadError(err)
	}
	return json.Marshal(bus.ProjectUploadReply{
		Status:        "ok",
		BaselineTests: result.Project.BaselineTests,
		ImageID:       result.Project.ImageID,
	})
}

// HandleSubmissionExecute runs a submission against the named project. The
// request is registered in the in-flight table so a concurrent
// project-removal can cancel it (spec §5 cancellation).
func (s *Service) HandleSubmissionExecute(ctx context.Context, headerJSON, body []byte) ([]byte, error) {
	var header bus.SubmissionExecuteHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return marshalExecutionError(errkind.New(errkind.BadInput, "malformed submission-execute header"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()
	s.register(header.ProjectName, token, cancel)
	defer s.unregister(header.ProjectName, token)

	execution, err := s.submissions.Submit(runCtx, submission.Request{
		ProjectName:   header.ProjectName,
		Archive:       body,
		ExecutionArgs: header.ExecutionArgs,
	})
	if err != nil {
		return marshalExecutionError(err)
	}
	return json.Marshal(execution)
}

// HandleProjectRemoval cancels every in-flight submission against the
// named project, then deletes its image and metadata. This is a one-way
// message; no reply is published.
func (s *Service) HandleProjectRemoval(ctx context.Context, headerJSON, _ []byte) ([]byte, error) {
	var msg bus.ProjectRemovalMessage
	if err := json.Unmarshal(headerJSON, &msg); err != nil {
		s.logger.Warn("project-removal: malformed header", "error", err)
		return nil, nil
	}

	s.cancelAll(msg.ProjectName)

	if err := s.images.Remove(ctx, msg.ProjectName); err != nil {
		s.logger.Error("project-removal failed", "project", msg.ProjectName, "error", err)
	}
	return nil, nil
}

func (s *Service) register(projectName, token string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[projectName] == nil {
		s.inFlight[projectName] = make(map[string]context.CancelFunc)
	}
	s.inFlight[projectName][token] = cancel
}

func (s *Service) unregister(projectName, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := s.inFlight[projectName]
	if tokens == nil {
		return
	}
	delete(tokens, token)
	if len(tokens) == 0 {
		delete(s.inFlight, projectName)
	}
}

func (s *Service) cancelAll(projectName string) {
	s.mu.Lock()
	tokens := s.inFlight[projectName]
	delete(s.inFlight, projectName)
	s.mu.Unlock()

	for _, cancel := range tokens {
		cancel()
	}
}

func marshalUploadError(err error) ([]byte, error) {
	payload := errkind.ToPayload(err)
	return json.Marshal(bus.ProjectUploadReply{Status: "error", Kind: string(payload.Kind), Message: payload.Message})
}

func marshalExecutionError(err error) ([]byte, error) {
	payload := errkind.ToPayload(err)
	return json.Marshal(bus.ErrorReply{Status: "error", Kind: string(payload.Kind), Message: payload.Message})
}
