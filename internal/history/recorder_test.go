package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodonguyen/FavStop/internal/db"
	"github.com/rodonguyen/FavStop/internal/translink"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Connect(filepath.Join(t.TempDir(), "favstop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureSchema(context.Background()))
	return database
}

func sampleStops() []translink.StopTimetable {
	return []translink.StopTimetable{
		{
			ID: "000876",
			Departures: []translink.Departure{
				{
					ID: "d1", RouteID: "T:Bus:390",
					ScheduledDepartureUTC: "2025-06-16T01:58:00Z",
					Realtime:              &translink.Realtime{ExpectedDepartureUTC: "2025-06-16T02:01:00Z"},
				},
				{ID: "d2", RouteID: "T:Bus:390", ScheduledDepartureUTC: "2025-06-16T02:10:00Z"},
				{
					ID: "d3", RouteID: "T:Bus:391",
					ScheduledDepartureUTC: "2025-06-16T02:15:00Z",
					Realtime:              &translink.Realtime{ExpectedDepartureUTC: "2025-06-16T02:45:00Z", IsCancelled: true},
				},
			},
			ServiceAlerts: translink.ServiceAlerts{
				Current:  []string{"Stop relocated"},
				Upcoming: []string{"Track works this weekend"},
			},
		},
	}
}

type collectionSpy struct {
	stops []translink.StopTimetable
}

func (s *collectionSpy) ObserveCollection(stops []translink.StopTimetable, at time.Time) {
	s.stops = stops
}

func TestRecords(t *testing.T) {
	records, observations := Records(sampleStops())

	require.Len(t, records, 3)
	assert.Equal(t, "Late (3 min)", records[0].Status)
	require.NotNil(t, records[0].DelaySeconds)
	assert.Equal(t, 180, *records[0].DelaySeconds)

	assert.Equal(t, "Scheduled", records[1].Status)
	assert.Nil(t, records[1].ExpectedUTC)
	assert.Nil(t, records[1].DelaySeconds)

	assert.Equal(t, "Cancelled", records[2].Status)
	assert.True(t, records[2].IsCancelled)
	assert.Nil(t, records[2].DelaySeconds, "cancelled departures do not feed delay statistics")

	assert.Equal(t, []db.DelayObservation{{RouteID: "T:Bus:390", DelaySeconds: 180}}, observations)
}

func TestAlerts(t *testing.T) {
	alerts := Alerts(sampleStops())
	assert.Equal(t, []db.Alert{
		{StopID: "000876", Message: "Stop relocated", Kind: db.AlertCurrent},
		{StopID: "000876", Message: "Track works this weekend", Kind: db.AlertUpcoming},
	}, alerts)
}

func TestRecorder_CollectionChanged(t *testing.T) {
	database := openTestDB(t)
	spy := &collectionSpy{}
	r := NewRecorder(database, database, spy)
	ctx := context.Background()

	require.NoError(t, r.CollectionChanged(ctx, sampleStops()))

	ids, err := database.LoadTrackedStops(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000876"}, ids)

	var departures, stats, activeAlerts int
	conn := database.Conn()
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM departure_history").Scan(&departures))
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM stats_delay_hourly").Scan(&stats))
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_alerts WHERE is_active = 1").Scan(&activeAlerts))
	assert.Equal(t, 3, departures)
	assert.Equal(t, 1, stats)
	assert.Equal(t, 2, activeAlerts)
	assert.Len(t, spy.stops, 1)

	// the stop is removed: its alerts resolve
	require.NoError(t, r.CollectionChanged(ctx, nil))
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_alerts WHERE is_active = 1").Scan(&activeAlerts))
	assert.Equal(t, 0, activeAlerts)

	ids, err = database.LoadTrackedStops(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

type failingTracked struct{}

func (failingTracked) SaveTrackedStops(ctx context.Context, stopIDs []string) error {
	return errors.New("read-only")
}

func (failingTracked) LoadTrackedStops(ctx context.Context) ([]string, error) {
	return nil, errors.New("read-only")
}

func TestRecorder_ContinuesAfterTrackedStoreFailure(t *testing.T) {
	database := openTestDB(t)
	r := NewRecorder(failingTracked{}, database, nil)
	ctx := context.Background()

	err := r.CollectionChanged(ctx, sampleStops())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save tracked stops: read-only")

	var departures int
	require.NoError(t, database.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM departure_history").Scan(&departures))
	assert.Equal(t, 3, departures)
}

func TestInitialStops(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	defaults := []string{"000876", "000635"}

	ids, err := InitialStops(ctx, database, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, ids)

	require.NoError(t, database.SaveTrackedStops(ctx, []string{"001234"}))
	ids, err = InitialStops(ctx, database, defaults)
	require.NoError(t, err)
	assert.Equal(t, []string{"001234"}, ids)

	ids, err = InitialStops(ctx, failingTracked{}, defaults)
	assert.Error(t, err)
	assert.Equal(t, defaults, ids)
}
