package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectEntry = `SELECT value FROM kv_entries WHERE key = $1`
	upsertEntry = `INSERT INTO kv_entries (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

// Postgres implements Backend using a single kv_entries table.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a backend on top of an open connection pool.
// The kv_entries table must exist, see Migrate.
func NewPostgres(dbp *pgxpool.Pool) *Postgres {
	return &Postgres{db: dbp}
}

// NewPool creates a new database connection pool and pings it (fail early if not reachable).
func NewPool(ctx context.Context, url string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	poolCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	dbPool, err := pgxpool.New(poolCtx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	if err := dbPool.Ping(poolCtx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbPool, nil
}

// Get retrieves the value stored under key.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := p.db.QueryRow(ctx, selectEntry, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Set upserts the value stored under key.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	if _, err := p.db.Exec(ctx, upsertEntry, key, string(value)); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// SetMany upserts all entries in one transaction.
func (p *Postgres) SetMany(ctx context.Context, entries map[string][]byte) error {
	for key := range entries {
		if key == "" {
			return ErrInvalidKey
		}
	}
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for key, value := range entries {
			batch.Queue(upsertEntry, key, string(value))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write entries: %w", err)
		}
		return nil
	})
}
