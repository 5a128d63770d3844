package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

// schema is the full DDL, idempotent by construction. A migration tool can
// replace this later; the statements mirror migrations/0001_init.sql.
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	platform_role TEXT NOT NULL DEFAULT 'member',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS location_samples (
	id            TEXT PRIMARY KEY,
	subject_id    TEXT NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	accuracy      DOUBLE PRECISION,
	altitude      DOUBLE PRECISION,
	speed         DOUBLE PRECISION,
	heading       DOUBLE PRECISION,
	battery_level INTEGER,
	charging      BOOLEAN NOT NULL DEFAULT FALSE,
	status        TEXT NOT NULL DEFAULT '',
	recorded_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_location_samples_subject_time
	ON location_samples (subject_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS safe_zones (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	name          TEXT NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	radius_meters DOUBLE PRECISION NOT NULL CHECK (radius_meters > 0),
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	notify_enter  BOOLEAN NOT NULL DEFAULT TRUE,
	notify_exit   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_safe_zones_owner ON safe_zones (owner_id) WHERE active;

CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	message    TEXT NOT NULL,
	severity   TEXT NOT NULL,
	lat        DOUBLE PRECISION,
	lon        DOUBLE PRECISION,
	read       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_alerts_subject_time
	ON alerts (subject_id, created_at DESC);

CREATE TABLE IF NOT EXISTS retention_policies (
	subject_id      TEXT PRIMARY KEY,
	retention_hours INTEGER NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS membership_facts (
	group_id   TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	since      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (group_id, subject_id)
);
CREATE INDEX IF NOT EXISTS idx_membership_facts_subject ON membership_facts (subject_id);

CREATE TABLE IF NOT EXISTS permission_grants (
	grantor_id    TEXT NOT NULL,
	grantee_id    TEXT NOT NULL,
	view_location BOOLEAN NOT NULL DEFAULT TRUE,
	view_battery  BOOLEAN NOT NULL DEFAULT TRUE,
	view_history  BOOLEAN NOT NULL DEFAULT TRUE,
	send_messages BOOLEAN NOT NULL DEFAULT TRUE,
	privacy_tier  TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (grantor_id, grantee_id)
);

CREATE TABLE IF NOT EXISTS access_audit (
	id          TEXT PRIMARY KEY,
	observer_id TEXT NOT NULL,
	subject_id  TEXT NOT NULL,
	capability  TEXT NOT NULL,
	decision    TEXT NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_access_audit_subject_time
	ON access_audit (subject_id, created_at DESC);

CREATE TABLE IF NOT EXISTS supervisor_grants (
	supervisor_id  TEXT NOT NULL,
	target_id      TEXT NOT NULL,
	view_location  BOOLEAN NOT NULL DEFAULT FALSE,
	view_battery   BOOLEAN NOT NULL DEFAULT FALSE,
	view_history   BOOLEAN NOT NULL DEFAULT FALSE,
	send_messages  BOOLEAN NOT NULL DEFAULT FALSE,
	receive_alerts BOOLEAN NOT NULL DEFAULT FALSE,
	view_messages  BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (supervisor_id, target_id)
);
`

// Execer is the statement surface Ensure needs; satisfied by *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Initializer runs schema creation and seeding exactly once per process.
// Concurrent callers block on the mutex until the first run completes
// rather than racing into partial initialization.
type Initializer struct {
	db     Execer
	logger *slog.Logger

	mu   sync.Mutex
	done bool
}

// NewInitializer creates an initialization guard for the connection.
func NewInitializer(conn Execer, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{db: conn, logger: logger}
}

// Ensure creates the schema and seeds the platform super-admin. Safe to
// call from every request path; only the first caller does work. A failed
// attempt leaves the guard open so the next caller retries.
func (i *Initializer) Ensure(ctx context.Context, seedAdminID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.done {
		return nil
	}

	if _, err := i.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if seedAdminID != "" {
		const q = `
			INSERT INTO subjects (id, display_name, platform_role)
			VALUES ($1, 'Administrator', 'super_admin')
			ON CONFLICT (id) DO NOTHING`
		if _, err := i.db.ExecContext(ctx, q, seedAdminID); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	i.done = true
	i.logger.Info("database initialized", "seed_admin", seedAdminID != "")
	return nil
}

// Initialized reports whether Ensure has completed.
func (i *Initializer) Initialized() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done
}
