// Command ingest is the QueuePulse operations CLI.
//
// Usage:
//
//	queuepulse-ingest schema init
//	queuepulse-ingest seed parks
//	queuepulse-ingest poll --workers 2
//	queuepulse-ingest evaluate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dvins/queuepulse-data/internal/config"
	"github.com/dvins/queuepulse-data/internal/db"
	"github.com/dvins/queuepulse-data/internal/notify"
	"github.com/dvins/queuepulse-data/internal/poller"
	"github.com/dvins/queuepulse-data/internal/source"
	"github.com/dvins/queuepulse-data/internal/waits"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "queuepulse-ingest",
		Short: "QueuePulse operations CLI",
	}

	root.AddCommand(schemaCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(pollCmd())
	root.AddCommand(evaluateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// schema command
// --------------------------------------------------------------------------

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create all tables and indexes (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpsBare(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := pool.InitSchema(ctx); err != nil {
					return err
				}
				logger.Info("Schema initialized")
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// seed command
// --------------------------------------------------------------------------

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "parks",
		Short: "Seed the tracked parks (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				return pool.SeedParks(ctx, logger)
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// poll command
// --------------------------------------------------------------------------

func pollCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one wait-time reconciliation tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				client := source.NewClient(cfg.QueueTimesBaseURL, cfg.QueueTimesRPM, logger)
				p := poller.New(client, waits.NewStore(pool.Pool), workers, logger)

				start := time.Now()
				result := p.Tick(ctx)
				logger.Info("Poll finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("poll error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 2, "Concurrent per-park worker count")
	return cmd
}

// --------------------------------------------------------------------------
// evaluate command
// --------------------------------------------------------------------------

func evaluateCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one notification evaluation tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				sender := notify.NewFCMSender(cfg.FCMCredentialsFile, logger)
				if sender == nil {
					return fmt.Errorf("FIREBASE_CREDENTIALS_FILE is required")
				}
				engine := notify.NewEngine(notify.NewPGStore(pool.Pool), sender, workers, logger)

				start := time.Now()
				result := engine.Tick(ctx)
				logger.Info("Evaluation finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("evaluation error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent per-user worker count")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runOps handles config loading, DB connection, and context cancellation.
func runOps(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	return run(db.New, fn)
}

// runOpsBare is runOps without prepared statement registration, for
// commands that must work before the schema exists.
func runOpsBare(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	return run(db.NewBare, fn)
}

func run(
	connect func(context.Context, *config.Config) (*db.Pool, error),
	fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error,
) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
