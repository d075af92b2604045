package db

import (
	"context"
	"fmt"
)

// schema contains the Postgres table definitions. All statements are
// idempotent so InitSchema can run on every deploy.
const schema = `
-- Parks tracked against the Queue-Times API.
CREATE TABLE IF NOT EXISTS parks (
	id              SERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	abbreviation    TEXT NOT NULL,
	external_api_id INTEGER NOT NULL UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Attractions are created on first observation and never deleted,
-- only deactivated.
CREATE TABLE IF NOT EXISTS attractions (
	id              SERIAL PRIMARY KEY,
	park_id         INTEGER NOT NULL REFERENCES parks(id),
	name            TEXT NOT NULL,
	external_api_id INTEGER NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (park_id, external_api_id)
);

CREATE INDEX IF NOT EXISTS idx_attractions_park ON attractions(park_id);

-- Append-only wait-time sample history. The poller is the only writer.
CREATE TABLE IF NOT EXISTS wait_times_cache (
	id            BIGSERIAL PRIMARY KEY,
	attraction_id INTEGER NOT NULL REFERENCES attractions(id),
	wait_minutes  INTEGER,
	status        TEXT NOT NULL DEFAULT 'unknown',
	trend         TEXT NOT NULL DEFAULT 'new',
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wait_times_attraction_fetched
	ON wait_times_cache(attraction_id, fetched_at DESC);

-- Users are owned by the auth/API layer; the core only reads device_token.
CREATE TABLE IF NOT EXISTS users (
	id             SERIAL PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	email_verified BOOLEAN NOT NULL DEFAULT false,
	device_token   TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Per-user, per-attraction notification preferences. Mutated by the
-- user-facing API; read-only to the evaluation engine.
CREATE TABLE IF NOT EXISTS notification_prefs (
	id                SERIAL PRIMARY KEY,
	user_id           INTEGER NOT NULL REFERENCES users(id),
	attraction_id     INTEGER NOT NULL REFERENCES attractions(id),
	threshold_minutes INTEGER NOT NULL DEFAULT 30,
	reopening_alert   BOOLEAN NOT NULL DEFAULT false,
	is_active         BOOLEAN NOT NULL DEFAULT true,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, attraction_id)
);

CREATE INDEX IF NOT EXISTS idx_prefs_user ON notification_prefs(user_id);
`

// InitSchema creates all tables and indexes if they do not exist.
func (p *Pool) InitSchema(ctx context.Context) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
