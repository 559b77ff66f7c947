// Package logging configures the process-wide slog logger. Output is
// JSON, to stderr by default, optionally duplicated to a size-rotated
// log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects the log level and an optional file destination.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int64
	MaxBackups int
}

// Setup installs the default slog logger according to opts. The returned
// closer flushes and closes the log file, if one was opened.
func Setup(opts Options) (io.Closer, error) {
	sinks := []io.Writer{os.Stderr}
	var closer io.Closer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		fw, err := OpenRotatingFile(opts.File, opts.MaxSizeMB*1024*1024, opts.MaxBackups)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fw)
		closer = fw
	}

	var out io.Writer = sinks[0]
	if len(sinks) > 1 {
		out = io.MultiWriter(sinks...)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: levelFromString(opts.Level)})
	slog.SetDefault(slog.New(handler))

	if closer == nil {
		closer = nopCloser{}
	}
	return closer, nil
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
