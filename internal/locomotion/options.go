package locomotion

import (
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/wbc"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLogHandler builds the Manager logger from handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(m *Manager) {
		m.logger = slog.New(handler).WithGroup("locomotion.Manager")
	}
}

// WithCore replaces the reference core with another whole-body core. The
// Manager wraps it in a TickGuard.
func WithCore(core wbc.Core) Option {
	return func(m *Manager) {
		m.inner = core
	}
}

// WithObserver receives a report after every tick of the locomotion state
// machine.
func WithObserver(obs statemachine.Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, obs)
	}
}
