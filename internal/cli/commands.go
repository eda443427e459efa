package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hanse-dev/eventbocker/internal/backup"
	"github.com/hanse-dev/eventbocker/internal/database"
	"github.com/hanse-dev/eventbocker/internal/jobstore"
	"github.com/hanse-dev/eventbocker/internal/scheduler"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info().Msg("Migrations applied")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Create reminder jobs for upcoming events without arming timers",
	Long: `Runs one reconciliation pass and prints the result. Jobs are only
written to the store. A running server arms them on its next tick or restart.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sender, err := a.newSender()
		if err != nil {
			return err
		}
		toggle, closeToggle, err := a.newToggle(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = closeToggle() }()

		opts, err := scheduler.OptionsFromConfig(a.cfg.Scheduler)
		if err != nil {
			return err
		}
		jobs := jobstore.New(database.SQLX(a.pool))
		sched := scheduler.New(jobs, a.events, a.bookings, sender, toggle, nil, opts, a.logger)

		res, err := sched.Reconcile(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var backupFile string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write all events and bookings as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		w := cmd.OutOrStdout()
		if backupFile != "" && backupFile != "-" {
			f, err := os.Create(backupFile)
			if err != nil {
				return fmt.Errorf("create backup file: %w", err)
			}
			defer f.Close()
			w = f
		}
		return backup.Write(cmd.Context(), a.svc, w, a.logger)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Load a JSON backup under fresh IDs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.migrate(ctx); err != nil {
			return err
		}

		var r io.Reader = cmd.InOrStdin()
		if backupFile != "" && backupFile != "-" {
			f, err := os.Open(backupFile)
			if err != nil {
				return fmt.Errorf("open backup file: %w", err)
			}
			defer f.Close()
			r = f
		}
		res, err := backup.Restore(ctx, a.svc, r, a.logger)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupFile, "file", "f", "-", "backup file, - for stdout")
	restoreCmd.Flags().StringVarP(&backupFile, "file", "f", "-", "backup file, - for stdin")

	rootCmd.AddCommand(migrateCmd, reconcileCmd, backupCmd, restoreCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
