package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone)
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.ReconcileCron)
	assert.Equal(t, 48*time.Hour, cfg.Scheduler.Horizon)
	assert.Equal(t, 18, cfg.Scheduler.ReminderHour)
	assert.True(t, cfg.Scheduler.RemindersEnabled)
	assert.True(t, cfg.Booking.UniqueEmail)
	assert.False(t, cfg.Emails.Disabled)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
environment: production
scheduler:
  timezone: UTC
  horizon: 72h
emails:
  disabled: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("EVENTBOCKER_MAIL_ADMIN_EMAIL", "admin@example.com")

	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 72*time.Hour, cfg.Scheduler.Horizon)
	assert.True(t, cfg.Emails.Disabled)
	assert.Equal(t, "admin@example.com", cfg.Mail.AdminEmail)
}

func TestConfig_Validate(t *testing.T) {
	base, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"unknown timezone", func(c *config.Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"bad cron", func(c *config.Config) { c.Scheduler.ReconcileCron = "every day" }},
		{"zero horizon", func(c *config.Config) { c.Scheduler.Horizon = 0 }},
		{"reminder hour", func(c *config.Config) { c.Scheduler.ReminderHour = 24 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
