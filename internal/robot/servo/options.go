package servo

import (
	"log/slog"
	"time"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets a custom logger for the Bridge.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithLogHandler builds the Bridge logger from handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(b *Bridge) {
		b.logger = slog.New(handler).WithGroup("servo.Bridge")
	}
}

// WithPeriod sets the polling period. Non-positive values are ignored.
func WithPeriod(period time.Duration) Option {
	return func(b *Bridge) {
		if period > 0 {
			b.period = period
		}
	}
}

// WithSerialPort opens a Feetech bus on port at baud.
func WithSerialPort(port string, baud int) Option {
	return func(b *Bridge) {
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		b.open = BusOpener(port, baud)
	}
}

// WithOpener replaces how the bridge connects to the servos.
func WithOpener(open Opener) Option {
	return func(b *Bridge) {
		b.open = open
	}
}
