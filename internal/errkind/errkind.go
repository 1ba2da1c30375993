// Package errkind implements the closed error taxonomy that failures are
// classified into: bad input, unknown projects, image build and baseline
// discovery failures, and bus, engine, and storage failures. Submission run
// outcomes (failing tests, timeouts) are reported as data, never as an
// error of this kind.
package errkind

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the closed set of error classifications.
type Kind string

const (
	BadInput                Kind = "BAD_INPUT"
	NotFound                Kind = "NOT_FOUND"
	ImageBuild              Kind = "IMAGE_BUILD"
	BaselineDiscovery       Kind = "BASELINE_DISCOVERY"
	ProjectNotFound         Kind = "PROJECT_NOT_FOUND"
	DockerUnavailable       Kind = "DOCKER_UNAVAILABLE"
	TimeoutWaitingForRunner Kind = "TIMEOUT_WAITING_FOR_RUNNER"
	Internal                Kind = "INTERNAL"
)

// Error is a failure classified by Kind.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to the HTTP status code the front service returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadInput:
		return http.StatusBadRequest
	case NotFound, ProjectNotFound:
		return http.StatusNotFound
	case ImageBuild, BaselineDiscovery:
		return http.StatusUnprocessableEntity
	case DockerUnavailable:
		return http.StatusServiceUnavailable
	case TimeoutWaitingForRunner:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Payload is the wire shape of a failing response, per spec: {kind, message}.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ToPayload renders err as a user-visible {kind, message} payload, falling
// back to INTERNAL for errors outside the taxonomy.
func ToPayload(err error) Payload {
	if e, ok := As(err); ok {
		return Payload{Kind: e.Kind, Message: e.Message}
	}
	return Payload{Kind: Internal, Message: err.Error()}
}
