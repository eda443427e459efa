// Package scheduler sends event reminders.
//
// A daily reconciliation pass looks at events starting within the horizon
// and creates one persisted reminder job per booking. Each job is armed as a
// one-shot timer that fires the day before the event. Jobs only hold weak
// references: a deleted event or booking turns the reminder into a no-op
// when it fires.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/hanse-dev/eventbocker/internal/jobstore"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/hanse-dev/eventbocker/internal/notify"
	"github.com/hanse-dev/eventbocker/internal/repository"
	"github.com/hanse-dev/eventbocker/internal/settings"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Status values reported by Status.
const (
	StatusRunning        = "running"
	StatusStopped        = "stopped"
	StatusNotInitialized = "not_initialized"
)

// Cancellation reasons stored on the job.
const (
	ReasonEventDeleted   = "event deleted"
	ReasonBookingDeleted = "booking deleted"
	ReasonDisabled       = "reminders disabled"
	ReasonMissed         = "missed"
	reasonFailedPrefix   = "failed: "
)

// ErrAlreadyStarted is returned by Start on a scheduler that was started before.
var ErrAlreadyStarted = errors.New("scheduler already started")

// JobStore persists reminder jobs.
type JobStore interface {
	CreateIfAbsent(ctx context.Context, job model.ReminderJob) (bool, error)
	Get(ctx context.Context, id string) (*model.ReminderJob, error)
	List(ctx context.Context, state model.JobState) ([]model.ReminderJob, error)
	Finish(ctx context.Context, id string, state model.JobState, reason string) error
	Count(ctx context.Context, state model.JobState) (int, error)
}

// EventSource reads events.
type EventSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// BookingSource reads bookings.
type BookingSource interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
}

// Sender delivers the reminder email.
type Sender interface {
	Send(ctx context.Context, kind notify.Kind, recipients []string, data notify.Data) error
}

// Options tunes the scheduler.
type Options struct {
	Location      *time.Location
	ReconcileCron string
	Horizon       time.Duration
	ReminderHour  int
	MisfireGrace  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig resolves cfg into Options.
func OptionsFromConfig(cfg config.SchedulerConfig) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, fmt.Errorf("scheduler timezone: %w", err)
	}
	return Options{
		Location:      loc,
		ReconcileCron: cfg.ReconcileCron,
		Horizon:       cfg.Horizon,
		ReminderHour:  cfg.ReminderHour,
		MisfireGrace:  cfg.MisfireGrace,
	}, nil
}

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Disabled  bool `json:"disabled"`
	Events    int  `json:"events"`
	Scheduled int  `json:"scheduled"`
	Existing  int  `json:"existing"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
}

// Scheduler owns reminder jobs: it creates them, arms their timers and runs
// them.
type Scheduler struct {
	store    JobStore
	events   EventSource
	bookings BookingSource
	sender   Sender
	toggle   settings.Toggle
	timer    Timer
	opts     Options
	logger   zerolog.Logger

	mu      sync.Mutex
	armed   map[string]struct{}
	running bool
	started bool
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New constructs a Scheduler. timer may be nil for a scheduler that only
// reconciles and never arms timers.
func New(
	store JobStore,
	events EventSource,
	bookings BookingSource,
	sender Sender,
	toggle settings.Toggle,
	timer Timer,
	opts Options,
	logger zerolog.Logger,
) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ReconcileCron == "" {
		opts.ReconcileCron = "0 0 * * *"
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 48 * time.Hour
	}
	if opts.MisfireGrace < 0 {
		opts.MisfireGrace = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		store:    store,
		events:   events,
		bookings: bookings,
		sender:   sender,
		toggle:   toggle,
		timer:    timer,
		opts:     opts,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		armed:    make(map[string]struct{}),
	}
}

func (s *Scheduler) now() time.Time { return s.opts.Now().In(s.opts.Location) }

// Start re-arms the persisted pending jobs, runs one reconciliation and
// installs the daily tick. A scheduler can only be started once.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.timer == nil {
		return errors.New("scheduler has no timer")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.running = true
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	s.timer.Start()

	if err := s.rearmPending(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to re-arm pending reminders")
	}

	if _, err := s.Reconcile(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial reconciliation failed")
	}

	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithLogger(cronLogger{l: s.logger}),
		cron.WithChain(cron.Recover(cronLogger{l: s.logger})),
	)
	if _, err := c.AddFunc(s.opts.ReconcileCron, func() {
		if _, err := s.Reconcile(s.baseCtx); err != nil {
			s.logger.Error().Err(err).Msg("daily reconciliation failed")
		}
	}); err != nil {
		_ = s.Stop()
		return fmt.Errorf("schedule daily reconciliation: %w", err)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	s.logger.Info().
		Str("timezone", s.opts.Location.String()).
		Str("reconcile_cron", s.opts.ReconcileCron).
		Msg("scheduler started")
	return nil
}

// Stop halts the daily tick and all armed timers. Pending jobs stay in the
// store and are re-armed by the next Start in a new process.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c := s.cron
	s.cron = nil
	s.armed = make(map[string]struct{})
	cancel := s.cancel
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	err := s.timer.Shutdown()
	if cancel != nil {
		cancel()
	}
	s.logger.Info().Msg("scheduler stopped")
	return err
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// rearmPending arms persisted pending jobs. Jobs overdue by more than the
// misfire grace are cancelled as missed.
func (s *Scheduler) rearmPending(ctx context.Context) error {
	jobs, err := s.store.List(ctx, model.JobPending)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}

	now := s.now()
	for _, job := range jobs {
		if late := now.Sub(job.FireAt); late > s.opts.MisfireGrace {
			if err := s.finish(ctx, job.JobID, model.JobCancelled, ReasonMissed); err != nil {
				s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to cancel missed reminder")
				continue
			}
			s.logger.Warn().
				Str("job_id", job.JobID).
				Dur("late", late).
				Msg("reminder missed during downtime, cancelled")
			continue
		}
		s.arm(job)
	}
	return nil
}

// Reconcile creates reminder jobs for all bookings of events starting within
// the horizon. It is safe to run concurrently with itself.
func (s *Scheduler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	enabled, err := s.toggle.Enabled(ctx)
	if err != nil {
		return res, fmt.Errorf("read reminders toggle: %w", err)
	}
	if !enabled {
		s.logger.Info().Msg("reminders are disabled, skipping reconciliation")
		res.Disabled = true
		return res, nil
	}

	now := s.now()
	events, err := s.events.ListBetween(ctx, now, now.Add(s.opts.Horizon))
	if err != nil {
		return res, fmt.Errorf("list upcoming events: %w", err)
	}
	res.Events = len(events)

	for _, ev := range events {
		fireAt := ReminderTime(ev.Date, s.opts.Location, s.opts.ReminderHour)
		if !fireAt.After(now) {
			res.Skipped++
			continue
		}

		bookings, err := s.bookings.ListByEvent(ctx, ev.ID)
		if err != nil {
			res.Failed++
			s.logger.Error().Err(&PersistenceError{JobID: JobID(ev.ID, "*"), Op: "list bookings", Err: err}).
				Str("event_id", ev.ID).
				Msg("skipping event")
			continue
		}

		for _, b := range bookings {
			created, err := s.schedule(ctx, ev, b, fireAt)
			switch {
			case err != nil:
				res.Failed++
				s.logger.Error().Err(err).Str("event_id", ev.ID).Str("booking_id", b.ID).Msg("failed to schedule reminder")
			case created:
				res.Scheduled++
			default:
				res.Existing++
			}
		}
	}

	s.logger.Info().
		Int("events", res.Events).
		Int("scheduled", res.Scheduled).
		Int("existing", res.Existing).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("reconciliation finished")
	return res, nil
}

// ScheduleBooking creates the reminder for a single new booking. It is a
// no-op when the event is outside the horizon or the reminder time passed;
// the daily pass picks those events up later.
func (s *Scheduler) ScheduleBooking(ctx context.Context, eventID, bookingID string) (bool, error) {
	enabled, err := s.toggle.Enabled(ctx)
	if err != nil {
		return false, fmt.Errorf("read reminders toggle: %w", err)
	}
	if !enabled {
		return false, nil
	}

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get event: %w", err)
	}

	now := s.now()
	if !ev.Date.After(now) || ev.Date.After(now.Add(s.opts.Horizon)) {
		return false, nil
	}
	fireAt := ReminderTime(ev.Date, s.opts.Location, s.opts.ReminderHour)
	if !fireAt.After(now) {
		return false, nil
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get booking: %w", err)
	}

	return s.schedule(ctx, *ev, *b, fireAt)
}

// schedule persists the job for one booking and arms it when the scheduler
// runs. Existing pending jobs that this process has not armed yet are armed
// too, so jobs created by an offline reconcile are picked up.
func (s *Scheduler) schedule(ctx context.Context, ev model.Event, b model.Booking, fireAt time.Time) (bool, error) {
	job := model.ReminderJob{
		JobID:     JobID(ev.ID, b.ID),
		EventID:   ev.ID,
		BookingID: b.ID,
		Recipient: b.Email,
		FireAt:    fireAt,
		State:     model.JobPending,
	}

	created, err := s.store.CreateIfAbsent(ctx, job)
	if err != nil {
		return false, &PersistenceError{JobID: job.JobID, Op: "create", Err: err}
	}

	if !s.isRunning() {
		return created, nil
	}
	if created {
		s.logger.Info().
			Str("job_id", job.JobID).
			Time("fire_at", fireAt).
			Msg("reminder scheduled")
		s.arm(job)
		return true, nil
	}

	if s.isArmed(job.JobID) {
		return false, nil
	}
	stored, err := s.store.Get(ctx, job.JobID)
	if err != nil {
		return false, &PersistenceError{JobID: job.JobID, Op: "get", Err: err}
	}
	if stored.State == model.JobPending {
		s.arm(*stored)
	}
	return false, nil
}

func (s *Scheduler) isArmed(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[jobID]
	return ok
}

// arm registers the job timer once per process.
func (s *Scheduler) arm(job model.ReminderJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if _, ok := s.armed[job.JobID]; ok {
		return
	}

	jobID := job.JobID
	if err := s.timer.Arm(jobID, job.FireAt, func() { s.run(jobID) }); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to arm reminder timer")
		return
	}
	s.armed[jobID] = struct{}{}
}

func (s *Scheduler) run(jobID string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if err := s.Fire(ctx, jobID); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("reminder job failed")
	}

	s.mu.Lock()
	delete(s.armed, jobID)
	s.mu.Unlock()
}

// Fire runs one reminder job. The job, its event and its booking are
// re-read. A vanished event or booking cancels the job silently; a disabled
// toggle cancels it with a reason. A send failure cancels the job and
// returns a *JobExecutionError; it is not retried.
func (s *Scheduler) Fire(ctx context.Context, jobID string) (err error) {
	log := s.logger.With().Str("job_id", jobID).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = &JobExecutionError{JobID: jobID, Err: fmt.Errorf("panic: %v", r)}
			if ferr := s.finish(ctx, jobID, model.JobCancelled, err.Error()); ferr != nil {
				log.Error().Err(ferr).Msg("failed to cancel panicked reminder")
			}
		}
	}()

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			log.Warn().Msg("reminder job vanished before firing")
			return nil
		}
		return &PersistenceError{JobID: jobID, Op: "get", Err: err}
	}
	if job.State != model.JobPending {
		log.Debug().Str("state", string(job.State)).Msg("reminder already finished")
		return nil
	}

	enabled, err := s.toggle.Enabled(ctx)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("read reminders toggle: %w", err))
	}
	if !enabled {
		log.Info().Str("recipient", job.Recipient).Msg("reminders are disabled, cancelling reminder")
		return s.finish(ctx, jobID, model.JobCancelled, ReasonDisabled)
	}

	ev, err := s.events.GetByID(ctx, job.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info().Str("event_id", job.EventID).Msg("event deleted, cancelling reminder")
			return s.finish(ctx, jobID, model.JobCancelled, ReasonEventDeleted)
		}
		return s.fail(ctx, jobID, fmt.Errorf("get event: %w", err))
	}

	b, err := s.bookings.GetByID(ctx, job.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info().Str("booking_id", job.BookingID).Msg("booking deleted, cancelling reminder")
			return s.finish(ctx, jobID, model.JobCancelled, ReasonBookingDeleted)
		}
		return s.fail(ctx, jobID, fmt.Errorf("get booking: %w", err))
	}
	if b.EventID != ev.ID {
		return s.finish(ctx, jobID, model.JobCancelled, ReasonBookingDeleted)
	}

	log.Info().Str("event_id", ev.ID).Str("recipient", job.Recipient).Msg("sending reminder")
	if err := s.sender.Send(ctx, notify.Reminder, []string{job.Recipient}, notify.Data{Event: ev, Booking: b}); err != nil {
		return s.fail(ctx, jobID, err)
	}

	return s.finish(ctx, jobID, model.JobFired, "")
}

// fail cancels the job with the error as diagnostic and returns a
// *JobExecutionError.
func (s *Scheduler) fail(ctx context.Context, jobID string, cause error) error {
	err := &JobExecutionError{JobID: jobID, Err: cause}
	if ferr := s.finish(ctx, jobID, model.JobCancelled, reasonFailedPrefix+cause.Error()); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

func (s *Scheduler) finish(ctx context.Context, jobID string, state model.JobState, reason string) error {
	err := s.store.Finish(ctx, jobID, state, reason)
	if err == nil || errors.Is(err, jobstore.ErrNotPending) {
		return nil
	}
	return &PersistenceError{JobID: jobID, Op: "finish", Err: err}
}

// Status reports the scheduler state. A nil scheduler is not initialized.
func (s *Scheduler) Status(ctx context.Context) (model.SchedulerStatus, error) {
	if s == nil {
		return model.SchedulerStatus{Status: StatusNotInitialized}, nil
	}

	status := StatusStopped
	if s.isRunning() {
		status = StatusRunning
	}

	enabled, err := s.toggle.Enabled(ctx)
	if err != nil {
		return model.SchedulerStatus{}, fmt.Errorf("read reminders toggle: %w", err)
	}
	count, err := s.store.Count(ctx, model.JobPending)
	if err != nil {
		return model.SchedulerStatus{}, fmt.Errorf("count pending jobs: %w", err)
	}
	return model.SchedulerStatus{Status: status, Enabled: enabled, JobCount: count}, nil
}

// SetRemindersEnabled flips the toggle. Enabling a running scheduler triggers
// a reconciliation right away.
func (s *Scheduler) SetRemindersEnabled(ctx context.Context, enabled bool) error {
	if err := s.toggle.SetEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("set reminders toggle: %w", err)
	}
	s.logger.Info().Bool("enabled", enabled).Msg("reminders toggle changed")

	if enabled && s.isRunning() {
		if _, err := s.Reconcile(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reconciliation after enabling failed")
		}
	}
	return nil
}
