// Package history records every successful change to the stop collection:
// the tracked IDs, a departure snapshot, hourly delay statistics and the
// service alerts shown at each stop.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rodonguyen/FavStop/internal/db"
	"github.com/rodonguyen/FavStop/internal/departure"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// TrackedStore persists the tracked stop IDs
type TrackedStore interface {
	SaveTrackedStops(ctx context.Context, stopIDs []string) error
	LoadTrackedStops(ctx context.Context) ([]string, error)
}

// Store persists departure history, delay statistics and alerts
type Store interface {
	CreateSnapshot(ctx context.Context, polledAt time.Time, stopCount int) (string, error)
	RecordDepartures(ctx context.Context, snapshotID string, polledAt time.Time, records []db.DepartureRecord) error
	UpdateDelayStats(ctx context.Context, observedAt time.Time, observations []db.DelayObservation) error
	UpsertAlerts(ctx context.Context, seenAt time.Time, alerts []db.Alert) error
	MarkResolvedAlerts(ctx context.Context, resolvedAt time.Time, activeIDs []string) error
}

// CollectionObserver is told about each recorded collection
type CollectionObserver interface {
	ObserveCollection(stops []translink.StopTimetable, at time.Time)
}

// Recorder implements stops.Listener
type Recorder struct {
	tracked  TrackedStore
	store    Store
	observer CollectionObserver
	now      func() time.Time
}

// NewRecorder creates a recorder. observer may be nil.
func NewRecorder(tracked TrackedStore, store Store, observer CollectionObserver) *Recorder {
	return &Recorder{
		tracked:  tracked,
		store:    store,
		observer: observer,
		now:      time.Now,
	}
}

// CollectionChanged saves the tracked IDs and records the snapshot. Every
// step runs even if an earlier one fails; the failures are joined.
func (r *Recorder) CollectionChanged(ctx context.Context, stops []translink.StopTimetable) error {
	now := r.now().UTC()

	var errs []error
	if err := r.tracked.SaveTrackedStops(ctx, stopIDs(stops)); err != nil {
		errs = append(errs, fmt.Errorf("failed to save tracked stops: %w", err))
	}
	if err := r.recordDepartures(ctx, now, stops); err != nil {
		errs = append(errs, err)
	}
	if err := r.recordAlerts(ctx, now, stops); err != nil {
		errs = append(errs, err)
	}

	if r.observer != nil {
		r.observer.ObserveCollection(stops, now)
	}

	return errors.Join(errs...)
}

func (r *Recorder) recordDepartures(ctx context.Context, now time.Time, stops []translink.StopTimetable) error {
	snapshotID, err := r.store.CreateSnapshot(ctx, now, len(stops))
	if err != nil {
		return err
	}

	records, observations := Records(stops)
	if err := r.store.RecordDepartures(ctx, snapshotID, now, records); err != nil {
		return err
	}
	return r.store.UpdateDelayStats(ctx, now, observations)
}

func (r *Recorder) recordAlerts(ctx context.Context, now time.Time, stops []translink.StopTimetable) error {
	alerts := Alerts(stops)
	if err := r.store.UpsertAlerts(ctx, now, alerts); err != nil {
		return err
	}

	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID()
	}
	return r.store.MarkResolvedAlerts(ctx, now, ids)
}

// Records flattens the departures of stops into history rows. Only realtime
// departures that run and have parseable timestamps produce a delay observation.
func Records(stops []translink.StopTimetable) ([]db.DepartureRecord, []db.DelayObservation) {
	var records []db.DepartureRecord
	var observations []db.DelayObservation

	for _, stop := range stops {
		for _, d := range stop.Departures {
			rec := db.DepartureRecord{
				StopID:       stop.ID,
				DepartureID:  d.ID,
				RouteID:      d.RouteID,
				Headsign:     d.Headsign,
				ScheduledUTC: d.ScheduledDepartureUTC,
				Status:       departure.Classify(d).Text,
				IsRealtime:   d.IsRealtime(),
			}

			if rt := d.Realtime; rt != nil {
				expected := rt.ExpectedDepartureUTC
				rec.ExpectedUTC = &expected
				rec.IsCancelled = rt.IsCancelled
				rec.IsSkipped = rt.IsSkipped

				if !rt.IsCancelled && !rt.IsSkipped {
					if delay, ok := departure.Delay(d); ok {
						seconds := int(delay / time.Second)
						rec.DelaySeconds = &seconds
						observations = append(observations, db.DelayObservation{RouteID: d.RouteID, DelaySeconds: seconds})
					}
				}
			}

			records = append(records, rec)
		}
	}

	return records, observations
}

// Alerts lists the current and upcoming service alerts of stops
func Alerts(stops []translink.StopTimetable) []db.Alert {
	var alerts []db.Alert
	for _, stop := range stops {
		for _, msg := range stop.ServiceAlerts.Current {
			alerts = append(alerts, db.Alert{StopID: stop.ID, Message: msg, Kind: db.AlertCurrent})
		}
		for _, msg := range stop.ServiceAlerts.Upcoming {
			alerts = append(alerts, db.Alert{StopID: stop.ID, Message: msg, Kind: db.AlertUpcoming})
		}
	}
	return alerts
}

// InitialStops returns the persisted stop IDs, or defaults when none are saved
// or the store cannot be read.
func InitialStops(ctx context.Context, tracked TrackedStore, defaults []string) ([]string, error) {
	ids, err := tracked.LoadTrackedStops(ctx)
	if err != nil {
		return defaults, fmt.Errorf("failed to load tracked stops: %w", err)
	}
	if len(ids) == 0 {
		return defaults, nil
	}
	return ids, nil
}

func stopIDs(stops []translink.StopTimetable) []string {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}
