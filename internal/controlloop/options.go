package controlloop

import (
	"log/slog"
	"time"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger for the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogHandler builds the Runner logger from handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		r.logger = slog.New(handler).WithGroup("controlloop.Runner")
	}
}

// WithPeriod sets the control period.
func WithPeriod(period time.Duration) Option {
	return func(r *Runner) {
		r.period = period
	}
}

// WithEnvironment brackets every tick with env.BeginTick and env.EndTick.
func WithEnvironment(env TickEnvironment) Option {
	return func(r *Runner) {
		r.env = env
	}
}

// WithHistory records faults in h.
func WithHistory(h *History) Option {
	return func(r *Runner) {
		r.history = h
	}
}

// WithFaultSink forwards every fault to sink.
func WithFaultSink(sink FaultSink) Option {
	return func(r *Runner) {
		r.sinks = append(r.sinks, sink)
	}
}
