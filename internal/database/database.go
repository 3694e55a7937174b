// Package database manages the pgx connection pools: one primary for writes
// and any number of read replicas picked round-robin.
package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	PrimaryDSN  string
	ReplicaDSNs []string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type DB struct {
	primary  *pgxpool.Pool
	replicas []*pgxpool.Pool
	next     uint32
}

func Connect(ctx context.Context, cfg Config) (*DB, error) {
	primary, err := newPool(ctx, cfg.PrimaryDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}

	db := &DB{primary: primary}
	for i, dsn := range cfg.ReplicaDSNs {
		replica, err := newPool(ctx, dsn, cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("replica %d: %w", i, err)
		}
		db.replicas = append(db.replicas, replica)
	}

	return db, nil
}

func newPool(ctx context.Context, dsn string, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return pool, nil
}

// Write returns the primary pool.
func (db *DB) Write() *pgxpool.Pool {
	return db.primary
}

// Read returns a replica pool round-robin, or the primary when no replicas
// are configured.
func (db *DB) Read() *pgxpool.Pool {
	if len(db.replicas) == 0 {
		return db.primary
	}
	idx := atomic.AddUint32(&db.next, 1) % uint32(len(db.replicas))
	return db.replicas[idx]
}

func (db *DB) Close() {
	if db.primary != nil {
		db.primary.Close()
	}
	for _, replica := range db.replicas {
		replica.Close()
	}
}

// Migrate applies the schema. Statements are idempotent so every server start
// can run them.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS shortened_urls (
			id UUID PRIMARY KEY,
			original_url TEXT NOT NULL,
			slug VARCHAR(20) NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ,
			click_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMPTZ,
			utm_parameters JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS link_clicks (
			id UUID PRIMARY KEY,
			short_link_id UUID NOT NULL REFERENCES shortened_urls(id) ON DELETE CASCADE,
			clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ip_address VARCHAR(64),
			user_agent TEXT,
			referer TEXT,
			browser VARCHAR(128),
			browser_version VARCHAR(64),
			os VARCHAR(128),
			os_version VARCHAR(64),
			device VARCHAR(128),
			is_mobile BOOLEAN NOT NULL DEFAULT FALSE,
			is_bot BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS link_clicks_short_link_id_idx ON link_clicks (short_link_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.primary.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
