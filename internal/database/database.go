package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN and checks it
// with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the invoices table used by the API and the worker.
const Schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	object_key TEXT NOT NULL,
	qr_key TEXT,
	status TEXT NOT NULL,
	record JSONB,
	payload TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);`

// EnsureSchema applies Schema. Keeping the migration in code lets
// docker-compose bootstrap everything.
func EnsureSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
