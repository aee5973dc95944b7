// Package database provides PostgreSQL connection management via pgx for
// the monitor event journal.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/config"
)

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// New opens a small connection pool; the journal writes one row per event.
func New(ctx context.Context, dc config.DatabaseConfig) (*DB, error) {
	cfg, err := poolConfig(dc)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig applies the configured pool bounds. MinConns above MaxConns is
// ignored.
func poolConfig(dc config.DatabaseConfig) (*pgxpool.Config, error) {
	cfg, err := ParseURL(dc.URL)
	if err != nil {
		return nil, err
	}
	if dc.MaxConns > 0 {
		cfg.MaxConns = int32(dc.MaxConns)
	}
	if dc.MinConns >= 0 && int32(dc.MinConns) <= cfg.MaxConns {
		cfg.MinConns = int32(dc.MinConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	return cfg, nil
}

// Migrate runs each statement in order inside one transaction.
func (db *DB) Migrate(ctx context.Context, statements ...string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
