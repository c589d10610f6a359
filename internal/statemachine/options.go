package statemachine

import "log/slog"

// Option configures a Machine.
type Option func(*settings)

type settings struct {
	name      string
	logger    *slog.Logger
	observers []Observer
}

// WithName sets the name used in logs, reports and errors.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithLogger sets a custom logger for the Machine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Machine.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *settings) {
		s.logger = slog.New(handler)
	}
}

// WithObserver registers a callback invoked after every Process call.
func WithObserver(obs Observer) Option {
	return func(s *settings) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}
