// Package logging builds the slog handlers used by modectl. Text output goes
// through charmbracelet/log; JSON output uses the slog JSON handler.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Level is a parsed log level. Trace is debug output with the caller and
// timestamps attached.
type Level struct {
	Slog  slog.Level
	Trace bool
}

// ParseLevel accepts trace, debug, info, warn, warning and error. An empty
// name is info.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return Level{Slog: slog.LevelDebug, Trace: true}, nil
	case "debug":
		return Level{Slog: slog.LevelDebug}, nil
	case "", "info":
		return Level{Slog: slog.LevelInfo}, nil
	case "warn", "warning":
		return Level{Slog: slog.LevelWarn}, nil
	case "error":
		return Level{Slog: slog.LevelError}, nil
	}
	return Level{}, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// SetupHandlerText returns a charmbracelet/log handler writing to writer, or
// stderr when writer is nil. Unknown levels fall back to info.
func SetupHandlerText(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}
	lvl, err := ParseLevel(logLevel)
	if err != nil {
		lvl = Level{Slog: slog.LevelInfo}
	}
	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: lvl.Trace || lvl.Slog == slog.LevelDebug,
		ReportCaller:    lvl.Trace,
		TimeFormat:      time.StampMilli,
		Level:           log.Level(lvl.Slog),
	})
}

// SetupHandlerJSON returns a slog JSON handler writing to writer, or stdout
// when writer is nil. Unknown levels fall back to info.
func SetupHandlerJSON(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stdout
	}
	lvl, err := ParseLevel(logLevel)
	if err != nil {
		lvl = Level{Slog: slog.LevelInfo}
	}
	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     lvl.Slog,
		AddSource: lvl.Trace,
	})
}

// NewHandler validates format and level and builds the matching handler.
func NewHandler(format, level string, writer io.Writer) (slog.Handler, error) {
	if _, err := ParseLevel(level); err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", FormatText:
		return SetupHandlerText(level, writer), nil
	case FormatJSON:
		return SetupHandlerJSON(level, writer), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// SetupLogger installs a text handler at logLevel as the slog default.
func SetupLogger(logLevel string) {
	slog.SetDefault(slog.New(SetupHandlerText(logLevel, nil)))
}
