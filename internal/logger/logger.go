package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"tourbook/internal/config"
)

var (
	singleton *slog.Logger
	once      sync.Once
)

// Init initializes the singleton logger from the provided config.
// The first call wins; later calls return the same instance.
func Init(cfg config.Config) (*slog.Logger, error) {
	once.Do(func() {
		singleton = New(os.Stdout, cfg)
	})

	return singleton, nil
}

// New builds a logger writing to w using the level and format from cfg.
// Every record carries the service name and the deployment environment.
func New(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	log := slog.New(handler).With("service", "tourbook")
	if cfg.AppEnv != "" {
		log = log.With("env", cfg.AppEnv)
	}
	return log
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// L returns the singleton logger instance.
// Before Init it returns a discarding logger so packages can log unconditionally.
func L() *slog.Logger {
	if singleton == nil {
		return discard
	}
	return singleton
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))
