package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanse-dev/eventbocker/internal/database"
	"github.com/hanse-dev/eventbocker/internal/handler"
	"github.com/hanse-dev/eventbocker/internal/jobstore"
	"github.com/hanse-dev/eventbocker/internal/ledger"
	"github.com/hanse-dev/eventbocker/internal/message"
	"github.com/hanse-dev/eventbocker/internal/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the reminder scheduler and the message router",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 1. Config, logger, PostgreSQL ─────────────────────────────────────
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	if err := a.migrate(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Connected to PostgreSQL, schema up to date")

	// ── 2. Notifications, messaging, booking ledger ───────────────────────
	sender, err := a.newSender()
	if err != nil {
		return err
	}

	wlogger := message.NewLoggerAdapter(logger)
	pubSub := message.NewPubSub(wlogger)
	defer pubSub.Close()

	publisher, err := message.NewEventPublisher(pubSub, wlogger)
	if err != nil {
		return err
	}
	bookingLedger := ledger.New(a.bookings, sender, publisher, a.cfg.Booking, logger)

	// ── 3. Reminder scheduler ─────────────────────────────────────────────
	toggle, closeToggle, err := a.newToggle(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeToggle() }()

	opts, err := scheduler.OptionsFromConfig(a.cfg.Scheduler)
	if err != nil {
		return err
	}
	timer, err := scheduler.NewGocronTimer(opts.Location, logger)
	if err != nil {
		return err
	}
	jobs := jobstore.New(database.SQLX(a.pool))
	sched := scheduler.New(jobs, a.events, a.bookings, sender, toggle, timer, opts, logger)

	router, err := message.NewRouter(message.RouterDeps{
		Logger:     logger,
		Subscriber: pubSub,
		Scheduler:  sched,
	})
	if err != nil {
		return err
	}

	// ── 4. HTTP ───────────────────────────────────────────────────────────
	h := handler.NewEventHandler(a.svc, bookingLedger, sched, a.pool, a.cfg.Server.BaseURL, logger)
	srv := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      handler.NewRouter(h, logger),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	// ── 5. Run until SIGINT/SIGTERM ───────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return router.Run(gctx)
	})

	g.Go(func() error {
		select {
		case <-router.Running():
		case <-gctx.Done():
			return nil
		}
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
		}
		if err := sched.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}
