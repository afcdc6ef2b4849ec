package service

import (
	"errors"
	"fmt"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
)

var ErrForbidden = errors.New("admin role required")

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a storage failure. The operation it names had no
// partial effect: order writes and their stock deltas commit together.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistErr passes through domain errors callers branch on and wraps the rest.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	var perr *PersistenceError
	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		return err
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInvalidOrder),
		errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, ErrForbidden):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
