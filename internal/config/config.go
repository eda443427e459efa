// Package config loads application configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Mail        MailConfig      `mapstructure:"mail"`
	Emails      EmailsConfig    `mapstructure:"emails"`
	Booking     BookingConfig   `mapstructure:"booking"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Logging     LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BaseURL      string        `mapstructure:"base_url"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis settings. Redis only backs the reminders toggle.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// MailConfig holds the Mailjet credentials and sender identity.
type MailConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Sender     string `mapstructure:"sender"`
	SenderName string `mapstructure:"sender_name"`
	AdminEmail string `mapstructure:"admin_email"`
}

// EmailsConfig toggles outbound mail. Disabled mail is logged instead of sent.
type EmailsConfig struct {
	Disabled bool `mapstructure:"disabled"`
}

// BookingConfig holds reservation policy.
type BookingConfig struct {
	// UniqueEmail rejects a second booking for the same event by the same address.
	UniqueEmail bool `mapstructure:"unique_email"`
}

// SchedulerConfig controls the reminder scheduler.
type SchedulerConfig struct {
	RemindersEnabled bool          `mapstructure:"reminders_enabled"`
	Timezone         string        `mapstructure:"timezone"`
	ReconcileCron    string        `mapstructure:"reconcile_cron"`
	Horizon          time.Duration `mapstructure:"horizon"`
	ReminderHour     int           `mapstructure:"reminder_hour"`
	MisfireGrace     time.Duration `mapstructure:"misfire_grace"`
}

// Location resolves the configured IANA timezone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// No file: defaults and env vars only.
	}

	v.SetEnvPrefix("EVENTBOCKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.Scheduler.ReconcileCron); err != nil {
		return fmt.Errorf("scheduler.reconcile_cron %q: %w", c.Scheduler.ReconcileCron, err)
	}
	if c.Scheduler.Horizon <= 0 {
		return fmt.Errorf("scheduler.horizon must be positive, got %s", c.Scheduler.Horizon)
	}
	if c.Scheduler.ReminderHour < 0 || c.Scheduler.ReminderHour > 23 {
		return fmt.Errorf("scheduler.reminder_hour must be within 0-23, got %d", c.Scheduler.ReminderHour)
	}
	return nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "eventbooking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.connect_attempts", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "eventbocker:reminders_enabled")

	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.api_secret", "")
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.sender_name", "Veranstaltungsmanager")
	v.SetDefault("mail.admin_email", "")

	v.SetDefault("emails.disabled", false)

	v.SetDefault("booking.unique_email", true)

	v.SetDefault("scheduler.reminders_enabled", true)
	v.SetDefault("scheduler.timezone", "Europe/Berlin")
	v.SetDefault("scheduler.reconcile_cron", "0 0 * * *")
	v.SetDefault("scheduler.horizon", "48h")
	v.SetDefault("scheduler.reminder_hour", 18)
	v.SetDefault("scheduler.misfire_grace", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
