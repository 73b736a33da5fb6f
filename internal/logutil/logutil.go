// Package logutil configures structured logging for the timer core.
package logutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName = "cronolearn.log"

	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Writer returns the rotated log file writer for the application. It
// falls back to stderr if the state directory cannot be resolved.
func Writer(appDir string) io.Writer {
	pathToLog, err := xdg.StateFile(filepath.Join(appDir, logFileName))
	if err != nil {
		return os.Stderr
	}

	return &lumberjack.Logger{
		Filename:   pathToLog,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
}

// New builds a JSON logger on top of w. verbose lowers the level to debug.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Discard returns a logger that drops every record. It keeps logger
// plumbing simple in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
