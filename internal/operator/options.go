package operator

import (
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLogHandler builds the Server logger from handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Server) {
		s.logger = slog.New(handler).WithGroup("operator.Server")
	}
}

// WithAddress sets the listen address.
func WithAddress(addr string) Option {
	return func(s *Server) {
		s.address = addr
	}
}

// WithPath sets the HTTP path the tools are served on.
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithDrainTimeout bounds how long in-flight requests may take at shutdown.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.drainTimeout = d
	}
}
