package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrTurnActive      = fmt.Errorf("a turn is already active")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")

	// Transport / stream errors.
	ErrRateLimit  = fmt.Errorf("rate limit exceeded")
	ErrOverloaded = fmt.Errorf("backend overloaded")
	ErrTimeout    = fmt.Errorf("operation timed out")
	ErrTransport  = fmt.Errorf("transport failure")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g. "Controller.Send")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed
// on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrOverloaded) ||
		errors.Is(err, ErrTimeout)
}
