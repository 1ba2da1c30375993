// Package frontsvc implements the front service's core: it receives
// archives over HTTP, forwards them to the runner over the bus, and
// records one MessageRequest per round trip.
package frontsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgecheck/grader/internal/bus"
	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
)

const (
	opProjectUpload     = "project-upload"
	opSubmissionExecute = "submission-execute"
	opProjectRemoval    = "project-removal"
)

// MessageStore persists MessageRequest rows (front-side bus bookkeeping,
// spec §6's "one row per bus round-trip").
type MessageStore interface {
	Insert(ctx context.Context, msg domain.MessageRequest) error
	Complete(ctx context.Context, id string, payload []byte, completedAt time.Time) error
	Fail(ctx context.Context, id string, payload []byte, completedAt time.Time) error
}

// Bus is the subset of *bus.Publisher the front service needs, narrowed to
// an interface so tests can substitute a fake in place of a live broker.
type Bus interface {
	Request(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error)
	PublishOneWay(ctx context.Context, op string, header any) error
}

// Service is the front-service core satisfying internal/apihttp.Service.
type Service struct {
	publisher      Bus
	messages       MessageStore
	logger         *slog.Logger
	requestTimeout time.Duration
}

// New builds a Service.
func New(publisher Bus, messages MessageStore, logger *slog.Logger, requestTimeout time.Duration) *Service {
	return &Service{publisher: publisher, messages: messages, logger: logger, requestTimeout: requestTimeout}
}

// UploadProject builds the named project's image by round-tripping the
// archive through the runner over the bus.
func (s *Service) UploadProject(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error) {
	header := bus.ProjectUploadHeader{ProjectName: name}
	replyBody, err := s.roundTrip(ctx, opProjectUpload, header, archive, name)
	if err != nil {
		return domain.ContainerExecution{}, err
	}

	var reply bus.ProjectUploadReply
	if err := json.Unmarshal(replyBody, &reply); err != nil {
		return domain.ContainerExecution{}, errkind.Wrap(errkind.Internal, "malformed project-upload reply", err)
	}
	if reply.Status == "error" {
		return domain.ContainerExecution{}, errkind.New(errkind.Kind(reply.Kind), reply.Message)
	}

	tests := make([]domain.TestCase, 0, len(reply.BaselineTests))
	for _, testName := range reply.BaselineTests {
		tests = append(tests, domain.TestCase{Test: testName})
	}
	return domain.ContainerExecution{
		Project: name,
		Purpose: domain.PurposeProjectCreation,
		Status:  domain.StatusSuccess,
		Output:  domain.TestOutput{Tests: tests},
	}, nil
}

// ExecuteSubmission runs a submission against an already-built project.
func (s *Service) ExecuteSubmission(ctx context.Context, projectName string, archive []byte, execArgs map[string]string) (domain.ContainerExecution, error) {
	correlationID := uuid.NewString()
	header := bus.SubmissionExecuteHeader{
		ProjectName:   projectName,
		CorrelationID: correlationID,
		ExecutionArgs: execArgs,
	}
	replyBody, err := s.roundTrip(ctx, opSubmissionExecute, header, archive, projectName)
	if err != nil {
		return domain.ContainerExecution{}, err
	}

	var errReply bus.ErrorReply
	if err := json.Unmarshal(replyBody, &errReply); err == nil && errReply.Status == "error" {
		return domain.ContainerExecution{}, errkind.New(errkind.Kind(errReply.Kind), errReply.Message)
	}

	var execution domain.ContainerExecution
	if err := json.Unmarshal(replyBody, &execution); err != nil {
		return domain.ContainerExecution{}, errkind.Wrap(errkind.Internal, "malformed submission-execute reply", err)
	}
	return execution, nil
}

// RemoveProject tells the runner to drop the project's image and cancel
// any in-flight submissions against it. One-way: no reply is awaited.
func (s *Service) RemoveProject(ctx context.Context, name string) error {
	if err := s.publisher.PublishOneWay(ctx, opProjectRemoval, bus.ProjectRemovalMessage{ProjectName: name}); err != nil {
		return errkind.Wrap(errkind.Internal, "failed to publish project-removal", err)
	}
	return nil
}

// roundTrip records a MessageRequest, publishes the request, and reports
// its outcome back onto the same record. A publisher-side timeout
// completes the record as TIMEOUT_WAITING_FOR_RUNNER without canceling
// the runner's work; the eventual reply is discarded as an orphan on the
// bus side (spec §5).
func (s *Service) roundTrip(ctx context.Context, op string, header any, body []byte, documentRef string) ([]byte, error) {
	msg := domain.MessageRequest{
		ID:          uuid.NewString(),
		Status:      domain.MessagePending,
		DocumentRef: documentRef,
		CreatedAt:   time.Now(),
	}
	if h, ok := header.(bus.SubmissionExecuteHeader); ok {
		msg.CorrelationID = h.CorrelationID
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		s.logger.Warn("failed to persist message request", "op", op, "error", err)
	}

	replyBody, err := s.publisher.Request(ctx, op, header, body, s.requestTimeout)
	now := time.Now()
	if err != nil {
		if err == bus.ErrTimeoutWaitingForRunner {
			payload, _ := json.Marshal(errkind.Payload{Kind: errkind.TimeoutWaitingForRunner, Message: fmt.Sprintf("%s: timed out waiting for runner", op)})
			if failErr := s.messages.Fail(ctx, msg.ID, payload, now); failErr != nil {
				s.logger.Warn("failed to mark message request failed", "op", op, "error", failErr)
			}
			return nil, errkind.New(errkind.TimeoutWaitingForRunner, "timed out waiting for runner")
		}
		payload, _ := json.Marshal(errkind.Payload{Kind: errkind.Internal, Message: err.Error()})
		if failErr := s.messages.Fail(ctx, msg.ID, payload, now); failErr != nil {
			s.logger.Warn("failed to mark message request failed", "op", op, "error", failErr)
		}
		return nil, errkind.Wrap(errkind.Internal, "bus request failed", err)
	}

	if completeErr := s.messages.Complete(ctx, msg.ID, replyBody, now); completeErr != nil {
		s.logger.Warn("failed to mark message request complete", "op", op, "error", completeErr)
	}
	return replyBody, nil
}
