package scheduler_test

import (
	"testing"
	"time"

	"github.com/hanse-dev/eventbocker/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGocronTimer_RunsDueJobImmediately(t *testing.T) {
	timer, err := scheduler.NewGocronTimer(time.UTC, zerolog.Nop())
	require.NoError(t, err)
	timer.Start()
	t.Cleanup(func() { _ = timer.Shutdown() })

	fired := make(chan string, 1)
	require.NoError(t, timer.Arm("overdue", time.Now().Add(-time.Minute), func() { fired <- "overdue" }))

	select {
	case id := <-fired:
		assert.Equal(t, "overdue", id)
	case <-time.After(5 * time.Second):
		t.Fatal("overdue job did not run")
	}
}

func TestGocronTimer_WaitsForFutureJob(t *testing.T) {
	timer, err := scheduler.NewGocronTimer(time.UTC, zerolog.Nop())
	require.NoError(t, err)
	timer.Start()
	t.Cleanup(func() { _ = timer.Shutdown() })

	fired := make(chan struct{}, 1)
	require.NoError(t, timer.Arm("future", time.Now().Add(time.Hour), func() { fired <- struct{}{} }))

	select {
	case <-fired:
		t.Fatal("future job ran early")
	case <-time.After(200 * time.Millisecond):
	}
}
