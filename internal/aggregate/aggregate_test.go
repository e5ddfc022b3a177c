package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodonguyen/FavStop/internal/translink"
)

// newTimetableServer serves a minimal timetable for every stop except those in failing
func newTimetableServer(t *testing.T, failing map[string]int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/stop/timetable/")
		if status, ok := failing[id]; ok {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(translink.StopTimetable{ID: id, Name: "Stop " + id})
	}))
	t.Cleanup(server.Close)
	return server
}

func ids(stops []translink.StopTimetable) []string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.ID
	}
	return out
}

func TestFailFast_AllSucceed(t *testing.T) {
	server := newTimetableServer(t, nil)
	client := translink.NewClient(server.URL, nil)

	stops, err := FailFast(context.Background(), client, []string{"003", "001", "002"})
	require.NoError(t, err)

	// request order, not completion order
	assert.Equal(t, []string{"003", "001", "002"}, ids(stops))
}

func TestFailFast_OneNon2xxFailsWholeBatch(t *testing.T) {
	server := newTimetableServer(t, map[string]int{"002": http.StatusInternalServerError})
	client := translink.NewClient(server.URL, nil)

	stops, err := FailFast(context.Background(), client, []string{"001", "002", "003"})

	var httpErr *translink.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Nil(t, stops, "partial successes are discarded")
}

func TestFailFast_CancelsInFlightFetches(t *testing.T) {
	boom := errors.New("boom")
	var cancelled atomic.Int32

	fetcher := FetcherFunc(func(ctx context.Context, id string) (*translink.StopTimetable, error) {
		if id == "bad" {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &translink.StopTimetable{ID: id}, nil
		}
	})

	start := time.Now()
	stops, err := FailFast(context.Background(), fetcher, []string{"slow1", "bad", "slow2"})

	assert.ErrorIs(t, err, boom, "the first error is returned unmodified")
	assert.Nil(t, stops)
	assert.Equal(t, int32(2), cancelled.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFailFast_DispatchesAllBeforeAnyCompletes(t *testing.T) {
	const n = 5
	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	fetcher := FetcherFunc(func(ctx context.Context, id string) (*translink.StopTimetable, error) {
		started.Done()
		select {
		case <-allStarted:
			return &translink.StopTimetable{ID: id}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("fetches were not started concurrently")
		}
	})

	stops, err := FailFast(context.Background(), fetcher, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, stops, n)
}

func TestFailFast_DeduplicatesIDs(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context, id string) (*translink.StopTimetable, error) {
		calls.Add(1)
		return &translink.StopTimetable{ID: id}, nil
	})

	stops, err := FailFast(context.Background(), fetcher, []string{"a", "b", "a", "c", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(stops))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFailFast_EmptyInput(t *testing.T) {
	stops, err := FailFast(context.Background(), FetcherFunc(nil), nil)
	require.NoError(t, err)
	assert.Empty(t, stops)
}

func TestWithLimit_CapsInFlightFetches(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	fetcher := FetcherFunc(func(ctx context.Context, id string) (*translink.StopTimetable, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &translink.StopTimetable{ID: id}, nil
	})

	stopIDs := []string{"1", "2", "3", "4", "5", "6", "7", "8"}

	stops, err := FailFast(context.Background(), fetcher, stopIDs, WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, stops, len(stopIDs))
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))

	maxInFlight.Store(0)
	stops, err = BestEffort(context.Background(), fetcher, stopIDs, WithLimit(3))
	require.NoError(t, err)
	assert.Len(t, stops, len(stopIDs))
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
}

func TestBestEffort_KeepsPartialSuccesses(t *testing.T) {
	server := newTimetableServer(t, map[string]int{
		"002": http.StatusNotFound,
		"004": http.StatusBadGateway,
	})
	client := translink.NewClient(server.URL, nil)

	stops, err := BestEffort(context.Background(), client, []string{"001", "002", "003", "004"})

	assert.Equal(t, []string{"001", "003"}, ids(stops))

	var batch *BatchError
	require.ErrorAs(t, err, &batch)
	require.Len(t, batch.Failures, 2)
	assert.Equal(t, "002", batch.Failures[0].StopID)
	assert.Equal(t, "004", batch.Failures[1].StopID)

	var httpErr *translink.HTTPError
	assert.ErrorAs(t, err, &httpErr, "individual errors stay reachable")
	assert.Equal(t, "stop 002: TransLink API Error: 404 not found; stop 004: TransLink API Error: 502 bad gateway", err.Error())
}

func TestBestEffort_AllSucceed(t *testing.T) {
	server := newTimetableServer(t, nil)
	client := translink.NewClient(server.URL, nil)

	stops, err := BestEffort(context.Background(), client, []string{"001", "002"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"001", "002"}, ids(stops))
}
