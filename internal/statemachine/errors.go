package statemachine

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a malformed transition table. It is returned at
	// construction time and must prevent the control loop from starting.
	ErrConfiguration = errors.New("state machine configuration error")

	// ErrNotInitialized is returned when the machine is driven before Build.
	ErrNotInitialized = errors.New("state machine not initialized")

	// ErrRuntimeOperation marks a failure raised by a state's Process.
	ErrRuntimeOperation = errors.New("state runtime operation failed")
)

var (
	ErrNilState          = errors.New("state is nil")
	ErrStateRebound      = errors.New("key already bound to a different state")
	ErrUnregisteredState = errors.New("state not registered")
	ErrAmbiguousEdge     = errors.New("event already bound to a different target without guards")
	ErrMissingEdge       = errors.New("callback has no matching transition")
	ErrSealed            = errors.New("transition table is sealed")
	ErrAlreadyBuilt      = errors.New("state machine already built")
	ErrEmptyEvent        = errors.New("event is empty")
)

// configError wraps err so that it matches both ErrConfiguration and err.
func configError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, err, fmt.Sprintf(format, args...))
}

// RuntimeOperationError is returned by Process when the active state fails.
// The machine stays in State and no automatic transition is attempted.
type RuntimeOperationError struct {
	Machine string
	State   string
	Err     error
}

func (e *RuntimeOperationError) Error() string {
	return fmt.Sprintf("%s: state %s: %v", e.Machine, e.State, e.Err)
}

func (e *RuntimeOperationError) Unwrap() []error {
	return []error{ErrRuntimeOperation, e.Err}
}

// IsRuntimeOperationError reports whether err carries a RuntimeOperationError.
func IsRuntimeOperationError(err error) bool {
	var target *RuntimeOperationError
	return errors.As(err, &target)
}
