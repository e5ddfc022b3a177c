package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Alert kinds as delivered in a stop's serviceAlerts block
const (
	AlertCurrent  = "current"
	AlertUpcoming = "upcoming"
)

// alertNamespace scopes the name-based alert IDs
var alertNamespace = uuid.MustParse("5b0d5cf6-3c7e-4d0e-9a8e-2a3f6d1b7c41")

// Alert is a service alert shown at a stop
type Alert struct {
	StopID  string
	Message string
	Kind    string
}

// ID is stable for the same stop, kind and message so repeated sightings upsert one row
func (a Alert) ID() string {
	return uuid.NewSHA1(alertNamespace, []byte(a.StopID+"\x00"+a.Kind+"\x00"+a.Message)).String()
}

// UpsertAlerts inserts new alerts and refreshes last_seen_at on known ones.
// A previously resolved alert that reappears becomes active again.
func (db *DB) UpsertAlerts(ctx context.Context, seenAt time.Time, alerts []Alert) error {
	if len(alerts) == 0 {
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
		INSERT INTO service_alerts (alert_id, stop_id, message, kind, is_active, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (alert_id) DO UPDATE SET
			is_active = 1,
			last_seen_at = excluded.last_seen_at,
			resolved_at = NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare alert statement: %w", err)
	}
	defer stmt.Close()

	seen := formatTime(seenAt)
	for _, a := range alerts {
		kind := a.Kind
		if kind == "" {
			kind = AlertCurrent
		}
		a.Kind = kind
		if _, err := stmt.ExecContext(ctx, a.ID(), a.StopID, a.Message, kind, seen, seen); err != nil {
			return fmt.Errorf("failed to upsert alert for stop %s: %w", a.StopID, err)
		}
	}

	return tx.Commit()
}

// MarkResolvedAlerts resolves every active alert whose ID is not in activeIDs
func (db *DB) MarkResolvedAlerts(ctx context.Context, resolvedAt time.Time, activeIDs []string) error {
	db.LockWrite()
	defer db.UnlockWrite()

	now := formatTime(resolvedAt)

	if len(activeIDs) == 0 {
		_, err := db.conn.ExecContext(ctx,
			"UPDATE service_alerts SET is_active = 0, resolved_at = ? WHERE is_active = 1",
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve alerts: %w", err)
		}
		return nil
	}

	placeholders := make([]string, len(activeIDs))
	args := make([]interface{}, 0, len(activeIDs)+1)
	args = append(args, now)
	for i, id := range activeIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"UPDATE service_alerts SET is_active = 0, resolved_at = ? WHERE is_active = 1 AND alert_id NOT IN (%s)",
		strings.Join(placeholders, ","),
	)
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to resolve alerts: %w", err)
	}
	return nil
}
