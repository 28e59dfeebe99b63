// Package logging installs the process wide slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/guyvdb/tradestore/fault"
)

// Options configures Setup.
type Options struct {
	Level   slog.Level
	NoColor bool
	// Source adds the calling file and line to every record.
	Source bool
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR, in any case, to a level. An
// empty name is INFO.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log level %q: %w", name, fault.ErrInvalidArgument)
}

// New returns a tint backed logger writing to w.
func New(w io.Writer, o Options) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      o.Level,
		NoColor:    o.NoColor,
		AddSource:  o.Source,
		TimeFormat: time.DateTime,
	}))
}

// Setup makes a tint logger writing to w the default logger and returns it.
func Setup(w io.Writer, o Options) *slog.Logger {
	logger := New(w, o)
	slog.SetDefault(logger)
	return logger
}
