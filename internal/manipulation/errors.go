package manipulation

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation  = errors.New("invalid hand request")
	ErrUnknownMode = errors.New("unknown hand mode")

	// ErrRequestDiscarded is returned when a valid request finds no edge
	// from the current mode or its guard refuses it.
	ErrRequestDiscarded = errors.New("hand request discarded")
)

// ValidationError rejects a request before anything is changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
