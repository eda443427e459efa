package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Timer arms one-shot callbacks.
type Timer interface {
	Arm(jobID string, at time.Time, fn func()) error
	Start()
	Shutdown() error
}

// GocronTimer runs one-shot jobs on a gocron scheduler.
type GocronTimer struct {
	s gocron.Scheduler
}

// NewGocronTimer creates a gocron-backed Timer in loc.
func NewGocronTimer(loc *time.Location, logger zerolog.Logger) (*GocronTimer, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(gocronLogger{l: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &GocronTimer{s: s}, nil
}

// Arm schedules fn at at. Times that are already due run immediately.
func (t *GocronTimer) Arm(jobID string, at time.Time, fn func()) error {
	start := gocron.OneTimeJobStartImmediately()
	if at.After(time.Now().Add(time.Second)) {
		start = gocron.OneTimeJobStartDateTime(at)
	}
	_, err := t.s.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(fn),
		gocron.WithName(jobID),
		gocron.WithTags(jobID),
	)
	if err != nil {
		return fmt.Errorf("arm %s: %w", jobID, err)
	}
	return nil
}

// Start begins running armed jobs.
func (t *GocronTimer) Start() { t.s.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (t *GocronTimer) Shutdown() error { return t.s.Shutdown() }

// gocronLogger adapts zerolog to gocron.Logger.
type gocronLogger struct {
	l zerolog.Logger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debug().Fields(args).Msg(msg) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Info().Fields(args).Msg(msg) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warn().Fields(args).Msg(msg) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Error().Fields(args).Msg(msg) }

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
