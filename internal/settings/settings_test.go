package settings_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/hanse-dev/eventbocker/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseToggle(t *testing.T, toggle settings.Toggle) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, toggle.SetEnabled(ctx, false))
	enabled, err := toggle.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, toggle.SetEnabled(ctx, true))
	enabled, err = toggle.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestMemory(t *testing.T) {
	m := settings.NewMemory(true)
	enabled, err := m.Enabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	exerciseToggle(t, m)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	key := "eventbocker:test:" + uuid.NewString()
	r, err := settings.NewRedis(context.Background(), config.RedisConfig{Addr: addr, Key: key}, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	enabled, err := r.Enabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled, "unset key reports the fallback")

	exerciseToggle(t, r)
}
