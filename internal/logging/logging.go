// Package logging configures zerolog and carries correlation IDs through
// contexts.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
)

// New builds the process logger. Development and "console" format use the
// human-readable writer, everything else logs JSON.
func New(cfg config.LoggingConfig, environment string) zerolog.Logger {
	return newLogger(os.Stderr, cfg, environment)
}

func newLogger(out io.Writer, cfg config.LoggingConfig, environment string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := out
	if environment == "development" || cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

type correlationKey struct{}

// ContextWithCorrelationID stores id in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the stored ID or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NewCorrelationID generates an ID for work that arrived without one.
func NewCorrelationID() string {
	return "gen_" + shortuuid.New()
}
