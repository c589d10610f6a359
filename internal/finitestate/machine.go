// Package finitestate wraps go-fsm with the lifecycle states shared by every
// supervised runnable in modectl.
package finitestate

import (
	"context"
	"log/slog"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew      = fsm.StatusNew
	StatusBooting  = fsm.StatusBooting
	StatusRunning  = fsm.StatusRunning
	StatusStopping = fsm.StatusStopping
	StatusStopped  = fsm.StatusStopped
	StatusError    = fsm.StatusError
	StatusUnknown  = fsm.StatusUnknown
)

// TypicalTransitions is the New -> Booting -> Running -> Stopping -> Stopped
// lifecycle, with Error reachable from every state.
var TypicalTransitions = fsm.TypicalTransitions

// Machine is the lifecycle tracker used by runnables. Keeping it an interface
// lets tests substitute a fake.
type Machine interface {
	// Transition attempts to transition the state machine to the specified state.
	Transition(state string) error

	// TransitionBool is Transition without the error detail.
	TransitionBool(state string) bool

	// TransitionIfCurrentState transitions only when the machine is in currentState.
	TransitionIfCurrentState(currentState, newState string) error

	// SetState forces the state without checking the transition table.
	SetState(state string) error

	// GetState returns the current state.
	GetState() string

	// GetStateChan emits the state whenever it changes. The channel is closed
	// when ctx is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// New creates a lifecycle machine in StatusNew.
func New(handler slog.Handler) (Machine, error) {
	machine, err := fsm.New(handler, StatusNew, TypicalTransitions)
	if err != nil {
		return nil, err
	}
	return machine, nil
}

// Fail moves m to StatusError, logging when even that is refused.
func Fail(m Machine, logger *slog.Logger) {
	if err := m.Transition(StatusError); err != nil {
		logger.Error("Failed to transition to error state", "error", err)
	}
}

// Shutdown walks m through Stopping to Stopped from wherever it is.
func Shutdown(m Machine) error {
	if m.GetState() != StatusStopping {
		if err := m.Transition(StatusStopping); err != nil {
			return err
		}
	}
	return m.Transition(StatusStopped)
}
