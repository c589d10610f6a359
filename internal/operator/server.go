// Package operator exposes the controllers to operators as MCP tools served
// over streamable HTTP. Tool handlers decode and validate requests and hand
// them to the control goroutine through mailboxes; they never touch
// controller state directly.
package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/robbyt/go-supervisor/runnables/httpserver"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable  = (*Server)(nil)
	_ supervisor.Stateable = (*Server)(nil)
)

const (
	DefaultAddress = "127.0.0.1:8765"
	DefaultPath    = "/mcp"
)

// Server serves the operator tools.
type Server struct {
	address      string
	path         string
	version      string
	drainTimeout time.Duration

	logger *slog.Logger
	mcp    *mcp.Server
	runner *httpserver.Runner
}

// NewServer registers the operator tools for targets.
func NewServer(targets Targets, opts ...Option) (*Server, error) {
	if targets.Poster == nil {
		return nil, errors.New("operator needs a request poster")
	}
	if targets.Frames == nil {
		return nil, errors.New("operator needs the frame tree")
	}

	s := &Server{
		address: DefaultAddress,
		path:    DefaultPath,
		version: "dev",
		logger:  slog.Default().WithGroup("operator.Server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "modectl", Version: s.version}, nil)
	t := &tools{targets: targets, logger: s.logger}
	t.register(s.mcp)

	runner, err := httpserver.NewRunner(httpserver.WithConfigCallback(s.config))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server runner: %w", err)
	}
	s.runner = runner
	return s, nil
}

func (s *Server) config() (*httpserver.Config, error) {
	route, err := httpserver.NewRouteFromHandlerFunc("mcp", s.path, s.Handler().ServeHTTP)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP route: %w", err)
	}
	var options []httpserver.ConfigOption
	if s.drainTimeout > 0 {
		options = append(options, httpserver.WithDrainTimeout(s.drainTimeout))
	}
	return httpserver.NewConfig(s.address, []httpserver.Route{*route}, options...)
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Handler returns the streamable HTTP handler of the tools.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

func (s *Server) String() string {
	return "operator.Server"
}

// Run serves the tools until ctx is canceled or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting operator server", "address", s.address, "path", s.path)
	return s.runner.Run(ctx)
}

func (s *Server) Stop() {
	s.logger.Info("Stopping operator server", "address", s.address)
	s.runner.Stop()
}

func (s *Server) GetState() string {
	return s.runner.GetState()
}

func (s *Server) GetStateChan(ctx context.Context) <-chan string {
	return s.runner.GetStateChan(ctx)
}

func (s *Server) IsRunning() bool {
	return s.runner.IsReady()
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.address
}
