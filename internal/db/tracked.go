package db

import (
	"context"
	"fmt"
	"time"
)

// SaveTrackedStops replaces the tracked stop list, keeping its order
func (db *DB) SaveTrackedStops(ctx context.Context, stopIDs []string) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tracked_stops"); err != nil {
		return fmt.Errorf("failed to clear tracked stops: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO tracked_stops (stop_id, position, updated_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare tracked stop statement: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for i, id := range stopIDs {
		if _, err := stmt.ExecContext(ctx, id, i, now); err != nil {
			return fmt.Errorf("failed to save tracked stop %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// LoadTrackedStops returns the saved stop IDs in order. An empty result
// means nothing has been saved yet.
func (db *DB) LoadTrackedStops(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT stop_id FROM tracked_stops ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked stops: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tracked stop: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
