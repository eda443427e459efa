package jobstore_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hanse-dev/eventbocker/internal/jobstore"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"job_id", "event_id", "booking_id", "recipient", "fire_at", "state", "reason", "created_at", "updated_at", "finished_at"}

func newStore(t *testing.T) (*jobstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return jobstore.New(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleJob() model.ReminderJob {
	return model.ReminderJob{
		JobID:     "reminder_event_e1_booking_b1",
		EventID:   "e1",
		BookingID: "b1",
		Recipient: "gast@example.com",
		FireAt:    time.Date(2025, 6, 9, 16, 0, 0, 0, time.UTC),
	}
}

func TestCreateIfAbsent(t *testing.T) {
	store, mock := newStore(t)
	job := sampleJob()

	insert := regexp.QuoteMeta("INSERT INTO reminder_jobs") + ".*" + regexp.QuoteMeta("ON CONFLICT (job_id) DO NOTHING")
	mock.ExpectExec(insert).
		WithArgs(job.JobID, job.EventID, job.BookingID, job.Recipient, job.FireAt, "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).
		WithArgs(job.JobID, job.EventID, job.BookingID, job.Recipient, job.FireAt, "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := store.CreateIfAbsent(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateIfAbsent(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateIfAbsent_Error(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO reminder_jobs").WillReturnError(errors.New("connection reset"))

	_, err := store.CreateIfAbsent(context.Background(), sampleJob())
	assert.ErrorContains(t, err, "connection reset")
}

func TestPut_Replaces(t *testing.T) {
	store, mock := newStore(t)
	job := sampleJob()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (job_id) DO UPDATE SET")).
		WithArgs(job.JobID, job.EventID, job.BookingID, job.Recipient, job.FireAt, "pending", "", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), job))
}

func TestExists(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("reminder_event_e1_booking_b1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.Exists(context.Background(), "reminder_event_e1_booking_b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGet(t *testing.T) {
	store, mock := newStore(t)
	job := sampleJob()
	created := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reminder_jobs WHERE job_id = $1")).
		WithArgs(job.JobID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(job.JobID, job.EventID, job.BookingID, job.Recipient, job.FireAt, "pending", "", created, created, nil))

	got, err := store.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, got.State)
	assert.Equal(t, job.Recipient, got.Recipient)
	assert.True(t, job.FireAt.Equal(got.FireAt))
	assert.Nil(t, got.FinishedAt)
}

func TestGet_NotFound(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("FROM reminder_jobs").WillReturnRows(sqlmock.NewRows(columns))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
}

func TestList(t *testing.T) {
	store, mock := newStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY fire_at ASC")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("j1", "e1", "b1", "a@example.com", now, "pending", "", now, now, nil).
			AddRow("j2", "e1", "b2", "b@example.com", now.Add(time.Hour), "pending", "", now, now, nil))

	jobs, err := store.List(context.Background(), model.JobPending)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j1", jobs[0].JobID)
	assert.Equal(t, "b@example.com", jobs[1].Recipient)
}

func TestRemove(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reminder_jobs")).WithArgs("j1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reminder_jobs")).WithArgs("j1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Remove(context.Background(), "j1"))
	assert.ErrorIs(t, store.Remove(context.Background(), "j1"), jobstore.ErrNotFound)
}

func TestFinish(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE reminder_jobs")

	t.Run("pending job", func(t *testing.T) {
		store, mock := newStore(t)
		mock.ExpectExec(update).
			WithArgs("j1", "fired", "", sqlmock.AnyArg(), "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Finish(context.Background(), "j1", model.JobFired, ""))
	})

	t.Run("already finished", func(t *testing.T) {
		store, mock := newStore(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := store.Finish(context.Background(), "j1", model.JobCancelled, "event deleted")
		assert.ErrorIs(t, err, jobstore.ErrNotPending)
	})

	t.Run("missing job", func(t *testing.T) {
		store, mock := newStore(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := store.Finish(context.Background(), "j1", model.JobCancelled, "")
		assert.ErrorIs(t, err, jobstore.ErrNotFound)
	})

	t.Run("pending is not terminal", func(t *testing.T) {
		store, _ := newStore(t)
		assert.Error(t, store.Finish(context.Background(), "j1", model.JobPending, ""))
	})
}

func TestCount(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.Count(context.Background(), model.JobPending)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
