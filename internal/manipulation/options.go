package manipulation

import (
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/wbc"
)

// Option configures a Module.
type Option func(*Module)

// WithLogger sets a custom logger for the Module.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// WithLogHandler builds the Module logger from handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(m *Module) {
		m.logger = slog.New(handler).WithGroup("manipulation.Module")
	}
}

// WithLoadBearingCheck sets the guard on TASK_SPACE_POSITION -> LOAD_BEARING.
// By default the hand is always considered able to bear load.
func WithLoadBearingCheck(ableToBearLoad func() bool) Option {
	return func(m *Module) {
		if ableToBearLoad != nil {
			m.ableToBearLoad = ableToBearLoad
		}
	}
}

// WithCore sends joint-space feedback commands to a whole-body core.
func WithCore(core wbc.Core) Option {
	return func(m *Module) {
		m.core = core
	}
}

// WithGains sets the joint-space feedback gains.
func WithGains(gains Gains) Option {
	return func(m *Module) {
		m.gains = gains
	}
}

// WithObserver receives a report after every tick of the hand state machine.
func WithObserver(obs statemachine.Observer) Option {
	return func(m *Module) {
		m.observers = append(m.observers, obs)
	}
}

// WithInitialMode sets the mode the hand starts in. Only modes that need no
// trajectory are accepted: JOINT_SPACE (the default) and TASK_SPACE_POSITION.
func WithInitialMode(mode Mode) Option {
	return func(m *Module) {
		m.initial = mode
	}
}
