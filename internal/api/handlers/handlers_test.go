package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/rodonguyen/FavStop/internal/aggregate"
	"github.com/rodonguyen/FavStop/internal/api/models"
	"github.com/rodonguyen/FavStop/internal/stops"
	"github.com/rodonguyen/FavStop/internal/translink"
)

var brisbane = time.FixedZone("AEST", 10*60*60)

func timetable(stopID string) *translink.StopTimetable {
	return &translink.StopTimetable{
		ID:   stopID,
		Name: "Stop " + stopID,
		Departures: []translink.Departure{
			{
				ID: stopID + "-1", RouteID: "T:Bus:390",
				ScheduledDepartureUTC: "2025-06-16T01:58:00Z",
				Realtime:              &translink.Realtime{ExpectedDepartureUTC: "2025-06-16T02:01:00Z"},
			},
			{ID: stopID + "-2", RouteID: "T:Bus:390", ScheduledDepartureUTC: "2025-06-16T02:10:00Z"},
		},
	}
}

// newManager serves every stop except those in failing
func newManager(t *testing.T, defaults []string, failing ...string) *stops.Manager {
	t.Helper()
	fail := make(map[string]bool)
	for _, id := range failing {
		fail[id] = true
	}

	fetch := aggregate.FetcherFunc(func(ctx context.Context, stopID string) (*translink.StopTimetable, error) {
		if fail[stopID] {
			return nil, &translink.HTTPError{StatusCode: 404, Message: "not found"}
		}
		return timetable(stopID), nil
	})

	m := stops.NewManager(fetch, defaults)
	m.Load(context.Background())
	return m
}

type fakeDelayRepo struct {
	alerts []models.ServiceAlert
	stats  []models.DelayHourlyStat
	err    error

	gotStopID string
	gotRoute  string
	gotHours  int
}

func (f *fakeDelayRepo) GetActiveAlerts(ctx context.Context, stopID string) ([]models.ServiceAlert, error) {
	f.gotStopID = stopID
	return f.alerts, f.err
}

func (f *fakeDelayRepo) GetHourlyDelayStats(ctx context.Context, routeID string, hours int) ([]models.DelayHourlyStat, error) {
	f.gotRoute = routeID
	f.gotHours = hours
	return f.stats, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestRouter(m *stops.Manager, repo DelayRepository, db Pinger) http.Handler {
	return NewRouter(RouterConfig{
		Stops:  NewStopHandler(m, 5, brisbane),
		Delays: NewDelayHandler(repo, m),
		Health: NewHealthHandler(db, m),
		Feed:   NewFeedHandler(m),
	})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGetStops(t *testing.T) {
	router := newTestRouter(newManager(t, []string{"000876", "000635"}), &fakeDelayRepo{}, fakePinger{})

	rec := serve(router, http.MethodGet, "/api/stops")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp models.StopsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "loaded", resp.State)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Stops, 2)
	assert.Equal(t, "000876", resp.Stops[0].ID)
	assert.Equal(t, "Late (3 min)", resp.Stops[0].Departures[0].Status)
	assert.Equal(t, "12:01 PM", resp.Stops[0].Departures[0].ExpectedTime)
	assert.Equal(t, "Scheduled", resp.Stops[0].Departures[1].Status)
}

func TestGetStop(t *testing.T) {
	router := newTestRouter(newManager(t, []string{"000876"}), &fakeDelayRepo{}, fakePinger{})

	rec := serve(router, http.MethodGet, "/api/stops/000876")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.StopView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "Stop 000876", view.Name)

	rec = serve(router, http.MethodGet, "/api/stops/999999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "Stop not found", errResp.Error)
}

func TestAddStop(t *testing.T) {
	m := newManager(t, []string{"000876"}, "404404")
	router := newTestRouter(m, &fakeDelayRepo{}, fakePinger{})

	t.Run("success", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/api/stops/000635")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, []string{"000876", "000635"}, m.IDs())
	})

	t.Run("upstream failure", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/api/stops/404404")
		require.Equal(t, http.StatusBadGateway, rec.Code)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
		assert.Equal(t, "Failed to add stop", errResp.Error)
		assert.Equal(t, "Failed to add stop 404404: TransLink API Error: 404 not found", errResp.Details["message"])
		assert.Equal(t, []string{"000876", "000635"}, m.IDs())
	})
}

// refreshFailsAfterAdd runs a failing bulk load right after every add, the
// way a refresh tick can land before the handler renders its response
type refreshFailsAfterAdd struct {
	*stops.Manager
}

func (m refreshFailsAfterAdd) AddStop(ctx context.Context, stopID string) error {
	err := m.Manager.AddStop(ctx, stopID)
	_ = m.Manager.Load(ctx, "404404")
	return err
}

func TestAddStop_ConcurrentFailedRefresh(t *testing.T) {
	m := newManager(t, []string{"000876"}, "404404")
	router := NewRouter(RouterConfig{Stops: NewStopHandler(refreshFailsAfterAdd{m}, 5, brisbane)})

	rec := serve(router, http.MethodPost, "/api/stops/000635")
	require.Equal(t, http.StatusCreated, rec.Code)

	var view models.StopView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "000635", view.ID)

	assert.Equal(t, "Failed to load departure data: TransLink API Error: 404 not found", m.Snapshot().Error)
	assert.Equal(t, []string{"000876", "000635"}, m.IDs())
}

func TestRemoveStop(t *testing.T) {
	m := newManager(t, []string{"000876", "000635"})
	router := newTestRouter(m, &fakeDelayRepo{}, fakePinger{})

	rec := serve(router, http.MethodDelete, "/api/stops/000876")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"000635"}, m.IDs())

	rec = serve(router, http.MethodDelete, "/api/stops/000876")
	assert.Equal(t, http.StatusNoContent, rec.Code, "removing an untracked stop is not an error")
}

func TestRefresh(t *testing.T) {
	router := newTestRouter(newManager(t, []string{"000876"}), &fakeDelayRepo{}, fakePinger{})
	rec := serve(router, http.MethodPost, "/api/stops/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newManager(t, []string{"000876", "404404"}, "404404")
	router = newTestRouter(failing, &fakeDelayRepo{}, fakePinger{})
	rec = serve(router, http.MethodPost, "/api/stops/refresh")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp models.StopsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "error", resp.State)
	assert.Equal(t, "Failed to load departure data: TransLink API Error: 404 not found", resp.Error)
	assert.Empty(t, resp.Stops)
}

func TestGetDelayStats(t *testing.T) {
	repo := &fakeDelayRepo{stats: []models.DelayHourlyStat{{RouteID: "T:Bus:390", ObservationCount: 4}}}
	router := newTestRouter(newManager(t, []string{"000876"}), repo, fakePinger{})

	rec := serve(router, http.MethodGet, "/api/delays/stats?route_id=T:Bus:390&period=48h")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T:Bus:390", repo.gotRoute)
	assert.Equal(t, 48, repo.gotHours)

	var resp models.DelayStatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.HourlyStats, 1)
	assert.Equal(t, 2, resp.Summary.TotalDepartures)
	assert.Equal(t, 1, resp.Summary.LateDepartures)
	assert.Equal(t, 180, resp.Summary.MaxDelaySeconds)

	repo.err = errors.New("boom")
	rec = serve(router, http.MethodGet, "/api/delays/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParsePeriodHours(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 24},
		{"48h", 48},
		{"720h", 720},
		{"721h", 24},
		{"0h", 24},
		{"2d", 24},
		{"h", 24},
	}
	for _, tc := range tests {
		if got := parsePeriodHours(tc.input); got != tc.expected {
			t.Errorf("parsePeriodHours(%q) = %d, expected %d", tc.input, got, tc.expected)
		}
	}
}

func TestGetAlerts(t *testing.T) {
	repo := &fakeDelayRepo{}
	router := newTestRouter(newManager(t, []string{"000876"}), repo, fakePinger{})

	rec := serve(router, http.MethodGet, "/api/alerts?stop_id=000876")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "000876", repo.gotStopID)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestHealth(t *testing.T) {
	m := newManager(t, []string{"000876"})

	rec := serve(newTestRouter(m, &fakeDelayRepo{}, fakePinger{}), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "loaded", resp.State)
	assert.Equal(t, 1, resp.TrackedStops)

	rec = serve(newTestRouter(m, &fakeDelayRepo{}, fakePinger{err: errors.New("database is locked")}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(newTestRouter(m, &fakeDelayRepo{}, fakePinger{}), http.MethodGet, "/healthz")
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGetTripUpdates(t *testing.T) {
	router := newTestRouter(newManager(t, []string{"000876"}), &fakeDelayRepo{}, fakePinger{})

	rec := serve(router, http.MethodGet, "/api/gtfs-rt/trip-updates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-protobuf", rec.Header().Get("Content-Type"))

	msg := &gtfs.FeedMessage{}
	require.NoError(t, proto.Unmarshal(rec.Body.Bytes(), msg))
	require.Len(t, msg.GetEntity(), 1, "only the realtime departure is exported")
	assert.Equal(t, "000876-1", msg.GetEntity()[0].GetTripUpdate().GetTrip().GetTripId())

	rec = serve(router, http.MethodGet, "/api/gtfs-rt/trip-updates?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, json.Valid(rec.Body.Bytes()))
}
