package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrNoActiveSession = errors.New("no active session")

	ErrInvalidState  = errors.New("invalid session state")
	ErrStrictMode    = errors.New("pause is not allowed in strict mode")
	ErrAlreadyActive = errors.New("session already active")
	ErrPersistence   = errors.New("session persistence failed")
	ErrCorruptState  = errors.New("persisted session is corrupt")
	ErrStaleRevision = errors.New("a newer session revision is already stored")
)

// OperationError records which operation failed and the session status it
// was attempted from.
type OperationError struct {
	Op     string
	Status string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s from %s: %v", e.Op, e.Status, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func Op(op, status string, err error) error {
	return &OperationError{Op: op, Status: status, Err: err}
}
