// Package logging configures runtime JSONL logging output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LevelEnv selects the log level (debug, info, warn, error).
const LevelEnv = "TANDEM_LOG_LEVEL"

const appDir = "tandem"

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds a JSONL logger under the tandem state directory.
func New() (Runtime, error) {
	dir, err := StateDir()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Runtime{}, err
	}

	path := filepath.Join(dir, "log.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: levelFromEnv()})
	logger := slog.New(h).With("pid", os.Getpid())
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// StateDir selects $XDG_STATE_HOME/tandem, otherwise ~/.local/state/tandem.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

// DebugDir is where optional utterance dumps are written.
func DebugDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug"), nil
}

func levelFromEnv() slog.Level {
	var level slog.Level
	raw := strings.TrimSpace(os.Getenv(LevelEnv))
	if raw == "" || level.UnmarshalText([]byte(raw)) != nil {
		return slog.LevelInfo
	}
	return level
}
