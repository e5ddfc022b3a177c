package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSnapshot records a successful collection load and returns its ID
func (db *DB) CreateSnapshot(ctx context.Context, polledAt time.Time, stopCount int) (string, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	snapshotID := uuid.New().String()

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO snapshots (snapshot_id, polled_at_utc, stop_count) VALUES (?, ?, ?)",
		snapshotID, formatTime(polledAt), stopCount,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	return snapshotID, nil
}

// DepartureRecord is one observed departure for history insertion
type DepartureRecord struct {
	StopID       string
	DepartureID  string
	RouteID      string
	Headsign     string
	ScheduledUTC string
	ExpectedUTC  *string
	Status       string
	DelaySeconds *int
	IsRealtime   bool
	IsCancelled  bool
	IsSkipped    bool
}

// RecordDepartures stores the departures observed in a snapshot
func (db *DB) RecordDepartures(ctx context.Context, snapshotID string, polledAt time.Time, records []DepartureRecord) error {
	if len(records) == 0 {
		return nil
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO departure_history (
			snapshot_id, stop_id, departure_id, route_id, headsign,
			scheduled_utc, expected_utc, status, delay_seconds,
			is_realtime, is_cancelled, is_skipped, polled_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history statement: %w", err)
	}
	defer stmt.Close()

	polledAtStr := formatTime(polledAt)
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			snapshotID, r.StopID, r.DepartureID, r.RouteID, r.Headsign,
			r.ScheduledUTC, r.ExpectedUTC, r.Status, r.DelaySeconds,
			boolInt(r.IsRealtime), boolInt(r.IsCancelled), boolInt(r.IsSkipped), polledAtStr,
		)
		if err != nil {
			return fmt.Errorf("failed to insert departure %s at stop %s: %w", r.DepartureID, r.StopID, err)
		}
	}

	return tx.Commit()
}

// CountDepartures returns the number of history rows for a snapshot
func (db *DB) CountDepartures(ctx context.Context, snapshotID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM departure_history WHERE snapshot_id = ?", snapshotID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count departures: %w", err)
	}
	return n, nil
}
