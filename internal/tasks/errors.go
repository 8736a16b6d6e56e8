package tasks

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindCapability
	KindTransientFetch
	KindMutation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindCapability:
		return "capability"
	case KindTransientFetch:
		return "transient fetch"
	case KindMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

var (
	// ErrNoListID is returned when the widget has no list identifier configured.
	ErrNoListID = errors.New("list id not configured")
	// ErrTaskNotFound is returned when a task id is not part of the list.
	ErrTaskNotFound = errors.New("task not found")
	// ErrServiceNotReady is returned when a request arrives before the service exists.
	ErrServiceNotReady = errors.New("task service not ready")
)

// Error is a classified failure with optional task context.
type Error struct {
	Kind   Kind
	TaskID string // empty when the failure is not tied to one task
	Err    error
}

func (e *Error) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s error (task %s): %v", e.Kind, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind.
func NewError(kind Kind, taskID string, err error) *Error {
	return &Error{Kind: kind, TaskID: taskID, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
