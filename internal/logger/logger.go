package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"anpr-locker/internal/config"
)

// New builds the process logger. Every line carries sessionID so a run's
// lock and reset history can be followed across restarts of the log sink.
func New(cfg config.LogConfig, sessionID string) zerolog.Logger {
	return build(os.Stderr, cfg, sessionID)
}

func build(w io.Writer, cfg config.LogConfig, sessionID string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("session_id", sessionID).
		Logger()
}
