// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap, and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvins/queuepulse-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// NewBare creates a pool without prepared statement registration.
// Statement preparation needs the tables to exist, so schema bootstrap
// connects through this instead of New.
func NewBare(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API, poller, and
// notification layers use. Prepared statements eliminate parse overhead on
// the hot per-tick queries.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Parks
		"list_active_parks": "SELECT id, name, abbreviation, external_api_id FROM parks ORDER BY name",
		"park_by_id":        "SELECT id, name, abbreviation, external_api_id FROM parks WHERE id = $1",

		// Attractions: resolve-or-create keyed on (park_id, external_api_id)
		"ensure_attraction": `
			INSERT INTO attractions (park_id, name, external_api_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (park_id, external_api_id)
			DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
		"attraction_detail": `
			SELECT a.id, a.name, a.external_api_id,
			       p.name, p.abbreviation,
			       w.wait_minutes, w.status, w.trend, w.fetched_at
			FROM attractions a
			JOIN parks p ON p.id = a.park_id
			LEFT JOIN LATERAL (
				SELECT wait_minutes, status, trend, fetched_at
				FROM wait_times_cache
				WHERE attraction_id = a.id
				ORDER BY fetched_at DESC, id DESC
				LIMIT 1
			) w ON true
			WHERE a.id = $1 AND a.is_active`,
		"park_attractions_with_waits": `
			SELECT a.id, a.name, a.external_api_id,
			       w.wait_minutes, w.status, w.trend, w.fetched_at
			FROM attractions a
			LEFT JOIN LATERAL (
				SELECT wait_minutes, status, trend, fetched_at
				FROM wait_times_cache
				WHERE attraction_id = a.id
				ORDER BY fetched_at DESC, id DESC
				LIMIT 1
			) w ON true
			WHERE a.park_id = $1 AND a.is_active
			ORDER BY a.name`,

		// Wait-time cache: append-only sample history
		"append_sample": `
			INSERT INTO wait_times_cache (attraction_id, wait_minutes, status, trend, fetched_at)
			VALUES ($1, $2, $3, $4, $5)`,
		"latest_sample": `
			SELECT attraction_id, wait_minutes, status, trend, fetched_at
			FROM wait_times_cache
			WHERE attraction_id = $1
			ORDER BY fetched_at DESC, id DESC
			LIMIT 1`,
		"latest_two_samples": `
			SELECT attraction_id, wait_minutes, status, trend, fetched_at
			FROM wait_times_cache
			WHERE attraction_id = $1
			ORDER BY fetched_at DESC, id DESC
			LIMIT 2`,

		// Notifications
		"users_with_device_token": `
			SELECT id, device_token FROM users
			WHERE device_token IS NOT NULL AND device_token <> ''`,
		"active_prefs_for_user": `
			SELECT np.user_id, np.attraction_id, np.threshold_minutes,
			       np.reopening_alert, a.name
			FROM notification_prefs np
			JOIN attractions a ON a.id = np.attraction_id
			WHERE np.user_id = $1 AND np.is_active AND a.is_active`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
