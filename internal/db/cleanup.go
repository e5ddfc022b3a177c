package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// retentionTables lists what Cleanup prunes, children before parents.
// Delay statistics are never pruned; they are already aggregated.
var retentionTables = []struct {
	name  string
	query string
}{
	{"departure_history", `DELETE FROM departure_history WHERE datetime(polled_at_utc) < datetime(?)`},
	{"snapshots", `DELETE FROM snapshots WHERE datetime(polled_at_utc) < datetime(?)`},
	{"resolved_alerts", `DELETE FROM service_alerts WHERE is_active = 0 AND datetime(resolved_at) < datetime(?)`},
}

// Cleanup deletes history older than the retention duration (at least one hour)
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) error {
	if retention < time.Hour {
		retention = time.Hour
	}
	cutoff := formatTime(time.Now().Add(-retention))

	db.LockWrite()
	defer db.UnlockWrite()

	var deleted int64
	for _, table := range retentionTables {
		res, err := db.conn.ExecContext(ctx, table.query, cutoff)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", table.name, err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if deleted > 0 {
		log.Printf("Cleanup: deleted %d records older than %v", deleted, retention)
	}
	return nil
}
