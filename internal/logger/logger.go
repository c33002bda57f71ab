// Package logger contains logger infrastructure
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
)

// Module provides logger for fx dependency injection
var Module = fx.Module("logger",
	fx.Provide(provideLogger),
)

// New creates a logger writing to out. format is "console" or "json".
func New(level, format string, out io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stdout}
	}

	return zerolog.New(out).
		With().
		Timestamp().
		Logger()
}

// Open returns the writer for cfg.File, falling back to stdout when unset.
// The returned close function is always non-nil.
func Open(cfg *config.LoggingConfig) (io.Writer, func() error, error) {
	if cfg.File == "" {
		return os.Stdout, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f.Close, nil
}

func provideLogger(lc fx.Lifecycle, cfg *config.LoggingConfig) (zerolog.Logger, error) {
	out, closeFn, err := Open(cfg)
	if err != nil {
		return zerolog.Nop(), err
	}
	lc.Append(fx.StopHook(closeFn))
	return New(cfg.Level, cfg.Format, out), nil
}

// parseLogLevel accepts zerolog level names plus "warning"; unknown or empty
// names fall back to info
func parseLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	if l, err := zerolog.ParseLevel(level); err == nil && l != zerolog.NoLevel {
		return l
	}
	return zerolog.InfoLevel
}
