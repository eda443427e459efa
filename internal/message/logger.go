package message

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// LoggerAdapter routes watermill logs to zerolog.
type LoggerAdapter struct {
	l zerolog.Logger
}

// NewLoggerAdapter tags l with component=watermill.
func NewLoggerAdapter(l zerolog.Logger) *LoggerAdapter {
	return &LoggerAdapter{l: l.With().Str("component", "watermill").Logger()}
}

func (a *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{l: a.l.With().Fields(map[string]interface{}(fields)).Logger()}
}
