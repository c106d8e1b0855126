// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"servicedesk/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Migrate creates the service desk tables when they do not exist yet.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS service_requests (
		code          TEXT PRIMARY KEY,
		submitted_at  TIMESTAMPTZ NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL,
		priority      TEXT NOT NULL,
		status        TEXT NOT NULL,
		tenant_id     TEXT NOT NULL,
		property_id   TEXT NOT NULL DEFAULT '',
		unit_id       TEXT NOT NULL DEFAULT '',
		room_id       TEXT NOT NULL DEFAULT '',
		worker_id     TEXT,
		completed_at  TIMESTAMPTZ,
		media         JSONB NOT NULL DEFAULT '[]',
		version       BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_status ON service_requests (status, submitted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_worker ON service_requests (worker_id)`,
	`CREATE TABLE IF NOT EXISTS service_request_audit (
		seq                 BIGSERIAL PRIMARY KEY,
		id                  UUID NOT NULL UNIQUE,
		request_code        TEXT NOT NULL REFERENCES service_requests (code),
		created_at          TIMESTAMPTZ NOT NULL,
		actor_id            TEXT NOT NULL,
		action              TEXT NOT NULL,
		details             TEXT NOT NULL DEFAULT '',
		from_status         TEXT NOT NULL DEFAULT '',
		to_status           TEXT NOT NULL DEFAULT '',
		previous_worker_id  TEXT NOT NULL DEFAULT '',
		new_worker_id       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_service_request_audit_code ON service_request_audit (request_code, seq)`,
	`CREATE TABLE IF NOT EXISTS workers (
		id        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		role      TEXT NOT NULL DEFAULT '',
		active    BOOLEAN NOT NULL DEFAULT TRUE,
		external  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS tenants (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS properties (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		id           TEXT PRIMARY KEY,
		property_id  TEXT NOT NULL REFERENCES properties (id),
		name         TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id       TEXT PRIMARY KEY,
		unit_id  TEXT NOT NULL REFERENCES units (id),
		name     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		recipient_id  TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		recipient_id             TEXT PRIMARY KEY,
		master_enabled           BOOLEAN NOT NULL,
		rent_reminders           BOOLEAN NOT NULL,
		service_request_updates  BOOLEAN NOT NULL,
		general_announcements    BOOLEAN NOT NULL,
		email                    BOOLEAN NOT NULL,
		sms                      BOOLEAN NOT NULL,
		in_app                   BOOLEAN NOT NULL,
		quiet_hours_start        TEXT,
		quiet_hours_end          TEXT,
		timezone                 TEXT NOT NULL DEFAULT '',
		default_tone             TEXT NOT NULL DEFAULT '',
		updated_at               TIMESTAMPTZ NOT NULL
	)`,
}
