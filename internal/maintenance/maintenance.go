// Package maintenance runs periodic background tasks as Go tickers.
// The cache table is append-only from the poller's point of view, so
// history pruning and attraction deactivation live here, off the hot path.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PruneInterval      time.Duration // Old wait_times_cache rows
	DeactivateInterval time.Duration // Attractions not observed recently
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PruneInterval:      1 * time.Hour,
		DeactivateInterval: 6 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"prune", cfg.PruneInterval,
		"deactivate", cfg.DeactivateInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.PruneInterval > 0 {
		t := time.NewTicker(cfg.PruneInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { pruneHistory(ctx, pool, logger) })
	}

	if cfg.DeactivateInterval > 0 {
		t := time.NewTicker(cfg.DeactivateInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { deactivateStale(ctx, pool, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// pruneHistory removes cache rows older than 7 days, always keeping the two
// most recent samples per attraction so trend and reopening detection keep
// working for rarely-updated attractions.
func pruneHistory(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM wait_times_cache w
		WHERE w.fetched_at < NOW() - INTERVAL '7 days'
		  AND w.id NOT IN (
			SELECT w2.id FROM wait_times_cache w2
			WHERE w2.attraction_id = w.attraction_id
			ORDER BY w2.fetched_at DESC, w2.id DESC
			LIMIT 2
		  )`)
	if err != nil {
		logger.Warn("Prune: failed to delete old samples", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Prune: deleted old samples", "count", tag.RowsAffected())
	}
}

// deactivateStale marks attractions inactive when the upstream has not
// reported them for 14 days. Attractions are never deleted.
func deactivateStale(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		UPDATE attractions a
		SET is_active = false
		WHERE a.is_active
		  AND NOT EXISTS (
			SELECT 1 FROM wait_times_cache w
			WHERE w.attraction_id = a.id
			  AND w.fetched_at > NOW() - INTERVAL '14 days'
		  )`)
	if err != nil {
		logger.Warn("Deactivate: failed", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Deactivate: marked stale attractions inactive", "count", tag.RowsAffected())
	}
}
