package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// OpenOutput resolves a log destination: "stdout" or "" for standard
// output, "stderr", or a file path, optionally prefixed with file://. Files
// are appended to and their directory is created.
func OpenOutput(output string) (io.WriteCloser, error) {
	switch {
	case output == "" || output == "stdout":
		return nopCloser{os.Stdout}, nil
	case output == "stderr":
		return nopCloser{os.Stderr}, nil
	case strings.Contains(output, "://") && !strings.HasPrefix(output, "file://"):
		return nil, fmt.Errorf("unsupported log output: %s", output)
	}

	path := strings.TrimPrefix(output, "file://")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
