package usecase

import "errors"

var (
	// ErrInvalidRequest covers malformed submissions: unknown source kind,
	// missing product name, or missing kind-specific fields.
	ErrInvalidRequest = errors.New("invalid harvest request")
	// ErrQueueFull is returned when the worker pool's backlog is saturated.
	ErrQueueFull = errors.New("harvest queue is full")
)

// RetryableError wraps a pipeline fault worth re-running the whole job:
// a fresh attempt may succeed.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError wraps a fault that retrying would only reproduce, such as a
// blown wall-clock or escalation budget.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// retryable is the orchestrator's whole retry policy: a pure function of
// the error kind. Anything not explicitly retryable is final.
func retryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}
