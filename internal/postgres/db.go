package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return pool, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		surname       TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users(email)`,

	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		stock       INTEGER NOT NULL CHECK (stock >= 0),
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS products_name_fts ON products USING GIN (to_tsvector('simple', name))`,

	`CREATE TABLE IF NOT EXISTS clients (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		surname    TEXT NOT NULL,
		company    TEXT NOT NULL,
		email      TEXT NOT NULL,
		phone      TEXT NOT NULL DEFAULT '',
		owner      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS clients_email_key ON clients(email)`,
	`CREATE INDEX IF NOT EXISTS clients_owner_idx ON clients(owner)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id          TEXT PRIMARY KEY,
		client_id   TEXT NOT NULL,
		owner       TEXT NOT NULL,
		status      TEXT NOT NULL,
		items       JSONB NOT NULL,
		total_cents BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version     INTEGER NOT NULL DEFAULT 1
	)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS version INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE orders ALTER COLUMN total_cents TYPE BIGINT`,
	`ALTER TABLE products ALTER COLUMN price_cents TYPE BIGINT`,
	`CREATE INDEX IF NOT EXISTS orders_owner_status_idx ON orders(owner, status)`,
	`CREATE INDEX IF NOT EXISTS orders_status_idx ON orders(status)`,
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
