package analyses

import (
	"errors"
	"fmt"

	"ideascope-backend/internal/aiservice"
)

// ErrorKind classifies a watch or submit failure independently of any wire status.
type ErrorKind string

const (
	KindTaskNotFound        ErrorKind = "task_not_found"
	KindUpstreamRejected    ErrorKind = "upstream_rejected"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindPersistenceFailure  ErrorKind = "persistence_failure"
	KindValidationFailure   ErrorKind = "validation_failure"
)

// Sentinels matched by *Error through errors.Is.
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrUpstreamRejected    = errors.New("upstream rejected request")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrValidationFailure   = errors.New("status message failed validation")
)

var (
	ErrInvalidIdea     = errors.New("invalid idea")
	ErrProjectNotFound = errors.New("project not found")
	ErrForbidden       = errors.New("forbidden")
)

const (
	ErrorCodeTaskNotFound        = "task_not_found"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
	ErrorCodeInternal            = "internal_error"
)

// Error is a domain error carrying its kind. Code is the upstream code for
// UpstreamRejected and empty otherwise.
type Error struct {
	Kind ErrorKind
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == sentinel(e.Kind)
}

// Recoverable reports whether the caller can act on the error, by resubmitting
// or checking the task id.
func (e *Error) Recoverable() bool {
	return e.Kind == KindTaskNotFound || e.Kind == KindUpstreamRejected
}

// PublicCode is the code shown to callers. Opaque kinds never expose detail.
func (e *Error) PublicCode() string {
	switch e.Kind {
	case KindTaskNotFound:
		return ErrorCodeTaskNotFound
	case KindUpstreamRejected:
		if e.Code != "" {
			return e.Code
		}
		return string(KindUpstreamRejected)
	case KindPersistenceFailure:
		return ErrorCodeInternal
	default:
		return ErrorCodeUpstreamUnavailable
	}
}

// PublicMessage is the human readable counterpart of PublicCode.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindTaskNotFound:
		return "analysis task not found or expired"
	case KindUpstreamRejected:
		return "analysis request was rejected"
	case KindPersistenceFailure:
		return "failed to save analysis result"
	default:
		return "analysis service unavailable"
	}
}

func sentinel(kind ErrorKind) error {
	switch kind {
	case KindTaskNotFound:
		return ErrTaskNotFound
	case KindUpstreamRejected:
		return ErrUpstreamRejected
	case KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	case KindPersistenceFailure:
		return ErrPersistenceFailure
	case KindValidationFailure:
		return ErrValidationFailure
	}
	return nil
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func taskNotFound(taskID string) *Error {
	return newError(KindTaskNotFound, fmt.Errorf("task %q", taskID))
}

// upstreamError maps an aiservice error to UpstreamRejected or UpstreamUnavailable.
func upstreamError(err error) *Error {
	var rej *aiservice.RejectedError
	if errors.As(err, &rej) {
		return &Error{Kind: KindUpstreamRejected, Code: rej.Code, Err: err}
	}
	return newError(KindUpstreamUnavailable, err)
}

// AsError returns err as a domain error, treating unknown errors as UpstreamUnavailable.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return newError(KindUpstreamUnavailable, err)
}
