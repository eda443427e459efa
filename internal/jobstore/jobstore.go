// Package jobstore persists reminder jobs in the reminder_jobs table so
// pending reminders survive a restart.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no job has the given ID.
var ErrNotFound = errors.New("job not found")

// ErrNotPending is returned when finishing a job that already reached a
// terminal state.
var ErrNotPending = errors.New("job is not pending")

const jobColumns = `job_id, event_id, booking_id, recipient, fire_at, state, reason, created_at, updated_at, finished_at`

// Store is the PostgreSQL job store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New constructs a Store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Exists reports whether a job with id is stored, in any state.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reminder_jobs WHERE job_id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("check job exists: %w", err)
	}
	return exists, nil
}

// CreateIfAbsent inserts job as pending unless its ID is already taken.
// It reports whether a row was created. Concurrent callers race safely on
// the primary key.
func (s *Store) CreateIfAbsent(ctx context.Context, job model.ReminderJob) (bool, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO reminder_jobs
		(job_id, event_id, booking_id, recipient, fire_at, state, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '', $7, $7)
		ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, job.EventID, job.BookingID, job.Recipient, job.FireAt, model.JobPending, now)
	if err != nil {
		return false, fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n == 1, nil
}

// Put inserts job or replaces the stored job with the same ID.
func (s *Store) Put(ctx context.Context, job model.ReminderJob) error {
	if job.State == "" {
		job.State = model.JobPending
	}
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO reminder_jobs
		(job_id, event_id, booking_id, recipient, fire_at, state, reason, created_at, updated_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			booking_id = EXCLUDED.booking_id,
			recipient = EXCLUDED.recipient,
			fire_at = EXCLUDED.fire_at,
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			updated_at = EXCLUDED.updated_at,
			finished_at = EXCLUDED.finished_at`,
		job.JobID, job.EventID, job.BookingID, job.Recipient, job.FireAt, job.State, job.Reason, now, job.FinishedAt)
	if err != nil {
		return fmt.Errorf("put job %s: %w", job.JobID, err)
	}
	return nil
}

// Remove deletes a job.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminder_jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("executing delete query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one job or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.ReminderJob, error) {
	var job model.ReminderJob
	err := s.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM reminder_jobs WHERE job_id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// List returns all jobs in state ordered by fire time. An empty state lists every job.
func (s *Store) List(ctx context.Context, state model.JobState) ([]model.ReminderJob, error) {
	var jobs []model.ReminderJob
	err := s.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM reminder_jobs
		 WHERE ($1 = '' OR state = $1)
		 ORDER BY fire_at ASC, job_id ASC`,
		string(state))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Finish moves a pending job to a terminal state. A job that is no longer
// pending yields ErrNotPending, a missing one ErrNotFound.
func (s *Store) Finish(ctx context.Context, id string, state model.JobState, reason string) error {
	if state == model.JobPending {
		return fmt.Errorf("finish job %s: %q is not a terminal state", id, state)
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE reminder_jobs
		SET state = $2, reason = $3, updated_at = $4, finished_at = $4
		WHERE job_id = $1 AND state = $5`,
		id, state, reason, now, model.JobPending)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

// Count returns the number of jobs in state.
func (s *Store) Count(ctx context.Context, state model.JobState) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reminder_jobs WHERE state = $1`, string(state))
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}
