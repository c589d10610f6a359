package recovery

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/robbyt/go-polyscript/platform/script/loader"
)

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets a custom logger for the Policy.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithLogHandler builds the Policy logger from handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(p *Policy) {
		p.logger = slog.New(handler).WithGroup("recovery.Policy")
	}
}

// WithScript replaces the default script with code.
func WithScript(code string) Option {
	return func(p *Policy) {
		p.code = code
		p.path = ""
	}
}

// WithScriptFile loads the script from path.
func WithScriptFile(path string) Option {
	return func(p *Policy) {
		p.path = path
		p.code = ""
	}
}

// WithTimeout bounds one script evaluation.
func WithTimeout(d time.Duration) Option {
	return func(p *Policy) {
		p.timeout = d
	}
}

// WithStaticData exposes data to the script as ctx["data"].
func WithStaticData(data map[string]any) Option {
	return func(p *Policy) {
		p.static = data
	}
}

func newLoader(code, path string) (loader.Loader, error) {
	if code != "" {
		return loader.NewFromString(code)
	}
	if path == "" {
		return nil, fmt.Errorf("neither script code nor path provided")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	return loader.NewFromDisk(abs)
}
