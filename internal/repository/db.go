package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Schema is the storefront's schema. Every statement is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS users (
		id               TEXT PRIMARY KEY,
		discord_id       TEXT NOT NULL UNIQUE,
		username         TEXT NOT NULL DEFAULT '',
		global_name      TEXT NOT NULL DEFAULT '',
		avatar           TEXT NOT NULL DEFAULT '',
		email            TEXT NOT NULL DEFAULT '',
		access_token     TEXT NOT NULL DEFAULT '',
		token_type       TEXT NOT NULL DEFAULT '',
		scope            TEXT NOT NULL DEFAULT '',
		token_created_at TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS orders (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id),
		session_id   TEXT NOT NULL UNIQUE,
		amount_total BIGINT NOT NULL,
		currency     TEXT NOT NULL,
		items        JSONB NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'paid', 'failed')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS slots (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id),
		order_id     TEXT NOT NULL REFERENCES orders(id),
		product_id   TEXT NOT NULL,
		product_name TEXT NOT NULL,
		months       INTEGER NOT NULL,
		guild_id     TEXT,
		starts_at    TIMESTAMPTZ NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		status       TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'expired', 'revoked')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_slots_user_id ON slots(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_slots_guild_product ON slots(guild_id, product_id, expires_at DESC) WHERE guild_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_slots_active_expiry ON slots(expires_at) WHERE status = 'active';
`

// RunMigrations applies Schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Health reports database reachability.
type Health struct {
	db *pgxpool.Pool
}

// NewHealth creates a Health checker for pool.
func NewHealth(db *pgxpool.Pool) *Health {
	return &Health{db: db}
}

// Ping checks the connection.
func (h *Health) Ping(ctx context.Context) error {
	return h.db.Ping(ctx)
}
