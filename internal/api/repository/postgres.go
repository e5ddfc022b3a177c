package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresTrackedSchema = `
	CREATE TABLE IF NOT EXISTS tracked_stops (
		stop_id     TEXT PRIMARY KEY,
		position    INTEGER NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresTrackedStore keeps the tracked stop list in Postgres so several
// instances can share it
type PostgresTrackedStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTrackedStore connects to databaseURL and ensures the table exists
func NewPostgresTrackedStore(ctx context.Context, databaseURL string) (*PostgresTrackedStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresTrackedSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tracked_stops table: %w", err)
	}

	return &PostgresTrackedStore{pool: pool}, nil
}

// Close closes the pool
func (s *PostgresTrackedStore) Close() {
	s.pool.Close()
}

// SaveTrackedStops replaces the tracked stop list, keeping its order
func (s *PostgresTrackedStore) SaveTrackedStops(ctx context.Context, stopIDs []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM tracked_stops"); err != nil {
			return fmt.Errorf("failed to clear tracked stops: %w", err)
		}

		batch := &pgx.Batch{}
		for i, id := range stopIDs {
			batch.Queue(
				"INSERT INTO tracked_stops (stop_id, position) VALUES ($1, $2) ON CONFLICT (stop_id) DO NOTHING",
				id, i,
			)
		}
		if batch.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save tracked stops: %w", err)
		}
		return nil
	})
}

// LoadTrackedStops returns the saved stop IDs in order
func (s *PostgresTrackedStore) LoadTrackedStops(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT stop_id FROM tracked_stops ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked stops: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracked stops: %w", err)
	}
	return ids, nil
}
