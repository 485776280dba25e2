package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogFileName is the log file written inside the log directory.
const LogFileName = "cnlwiki.log"

// nopCloser closes nothing.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the process logger. Records go to stderr and, when logDir
// can be created, to logDir/cnlwiki.log as well. The returned closer closes
// the log file.
func newLogger(stderr io.Writer, format, level, logDir string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}

	w := stderr
	var closer io.Closer = nopCloser{}
	var fileErr error
	if logDir != "" {
		f, err := openLogFile(logDir)
		if err != nil {
			fileErr = err
		} else {
			w = io.MultiWriter(stderr, f)
			closer = f
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("invalid log format %q", format)
	}

	logger := slog.New(h)
	if fileErr != nil {
		logger.Warn("logging to stderr only", "error", fileErr)
	}
	return logger, closer, nil
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
