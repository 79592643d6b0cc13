package chronos

import (
	"errors"
	"fmt"
)

// The store reports failures through the following sentinels; match them with
// errors.Is. Engines return ErrNotFound and ErrConstraintViolation themselves,
// the Store adds context on top.
var (
	// ErrNotFound reports a reference to an entity or spacetime that does not
	// exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation reports a command that would break an invariant of
	// the store (a second root, a duplicate fact, a cross-project reference...).
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidValue reports a malformed fact value or attribute name.
	ErrInvalidValue = errors.New("invalid value")
	// ErrCycleDetected reports a spacetime ancestry that revisits a spacetime or
	// exceeds the configured depth bound.
	ErrCycleDetected = errors.New("cycle detected in spacetime ancestry")
)

// StoreError wraps an engine failure that falls outside the error taxonomy
// above (I/O, a closed database, a lost connection...). Use errors.As to
// extract it.
type StoreError struct {
	Op  string // The Store operation that failed, e.g. "record fact".
	Err error
}

func (e *StoreError) Error() string {
	return "chronos: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// classify keeps taxonomy errors as they are and wraps anything else in a
// StoreError.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConstraintViolation),
		errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrCycleDetected):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return &StoreError{Op: op, Err: err}
	}
}
