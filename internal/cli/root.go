// Package cli holds the cobra commands and the process wiring.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/hanse-dev/eventbocker/internal/database"
	"github.com/hanse-dev/eventbocker/internal/logging"
	"github.com/hanse-dev/eventbocker/internal/notify"
	"github.com/hanse-dev/eventbocker/internal/repository"
	"github.com/hanse-dev/eventbocker/internal/service"
	"github.com/hanse-dev/eventbocker/internal/settings"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "eventbocker",
	Short:         "Event booking service with email reminders",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every command needs: config, logger and the database layer.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	events   *repository.EventRepository
	bookings *repository.BookingRepository
	svc      *service.EventService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging, cfg.Environment)

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	events := repository.NewEventRepository(pool)
	bookings := repository.NewBookingRepository(pool)
	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		events:   events,
		bookings: bookings,
		svc:      service.NewEventService(events, bookings),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

func (a *app) migrate(ctx context.Context) error {
	return database.Migrate(ctx, database.SQLX(a.pool).DB)
}

func (a *app) newSender() (*notify.Sender, error) {
	loc, err := a.cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	renderer, err := notify.NewTemplateRenderer(loc)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	transport := notify.NewMailjetTransport(a.cfg.Mail.APIKey, a.cfg.Mail.APISecret)
	return notify.NewSender(a.cfg.Mail, a.cfg.Emails, renderer, transport, a.logger), nil
}

// newToggle returns the reminders switch. It is shared through Redis when
// enabled so every replica sees the same value.
func (a *app) newToggle(ctx context.Context) (settings.Toggle, func() error, error) {
	initial := a.cfg.Scheduler.RemindersEnabled
	if !a.cfg.Redis.Enabled {
		return settings.NewMemory(initial), func() error { return nil }, nil
	}
	r, err := settings.NewRedis(ctx, a.cfg.Redis, initial)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return r, r.Close, nil
}
