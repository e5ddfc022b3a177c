package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rodonguyen/FavStop/internal/metrics"
)

// DelayThresholdSeconds is the delay beyond which a departure counts as delayed (5 minutes)
const DelayThresholdSeconds = 300

// DelayObservation is one delay measurement for a route
type DelayObservation struct {
	RouteID      string
	DelaySeconds int
}

// UpdateDelayStats folds observations into the hourly bucket containing observedAt
func (db *DB) UpdateDelayStats(ctx context.Context, observedAt time.Time, observations []DelayObservation) error {
	byRoute := make(map[string][]int)
	for _, obs := range observations {
		if obs.RouteID == "" {
			continue
		}
		byRoute[obs.RouteID] = append(byRoute[obs.RouteID], obs.DelaySeconds)
	}
	if len(byRoute) == 0 {
		return nil
	}

	hourBucket := formatTime(observedAt.UTC().Truncate(time.Hour))

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for routeID, delays := range byRoute {
		var state metrics.WelfordState
		var delayedCount, onTimeCount, maxDelay int

		err := tx.QueryRowContext(ctx, `
			SELECT observation_count, delay_mean_seconds, delay_m2,
				delayed_count, on_time_count, max_delay_seconds
			FROM stats_delay_hourly
			WHERE route_id = ? AND hour_bucket = ?
		`, routeID, hourBucket).Scan(&state.Count, &state.Mean, &state.M2, &delayedCount, &onTimeCount, &maxDelay)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read delay stats for %s: %w", routeID, err)
		}

		for _, delaySec := range delays {
			state.Update(float64(delaySec))

			absDelay := delaySec
			if absDelay < 0 {
				absDelay = -absDelay
			}
			if absDelay > DelayThresholdSeconds {
				delayedCount++
			} else {
				onTimeCount++
			}
			if absDelay > maxDelay {
				maxDelay = absDelay
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stats_delay_hourly (route_id, hour_bucket, observation_count,
				delay_mean_seconds, delay_m2, delayed_count, on_time_count, max_delay_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (route_id, hour_bucket) DO UPDATE SET
				observation_count = excluded.observation_count,
				delay_mean_seconds = excluded.delay_mean_seconds,
				delay_m2 = excluded.delay_m2,
				delayed_count = excluded.delayed_count,
				on_time_count = excluded.on_time_count,
				max_delay_seconds = excluded.max_delay_seconds
		`, routeID, hourBucket, state.Count, state.Mean, state.M2, delayedCount, onTimeCount, maxDelay)
		if err != nil {
			return fmt.Errorf("failed to upsert delay stats for %s: %w", routeID, err)
		}
	}

	return tx.Commit()
}
