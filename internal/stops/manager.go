// Package stops holds the user's collection of tracked stop timetables and
// the loading/error state the display layer renders.
//
// All mutations go through a single writer; readers take a Snapshot and
// never observe a half-applied batch.
package stops

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rodonguyen/FavStop/internal/aggregate"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// State is the coarse lifecycle of the collection
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateError   State = "error"
	StateLoaded  State = "loaded"
)

// Policy selects how a bulk load treats per-stop failures
type Policy string

const (
	// FailFast abandons the batch on the first failure and keeps the old collection
	FailFast Policy = "fail-fast"
	// BestEffort replaces the collection with whatever succeeded
	BestEffort Policy = "best-effort"
)

// Snapshot is a consistent copy of the manager state
type Snapshot struct {
	Stops   []translink.StopTimetable
	Loading bool
	Error   string
	State   State
}

// Listener is told about every successful change to the collection.
// Errors are logged and otherwise ignored.
type Listener interface {
	CollectionChanged(ctx context.Context, stops []translink.StopTimetable) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, stops []translink.StopTimetable) error

// CollectionChanged calls f
func (f ListenerFunc) CollectionChanged(ctx context.Context, stops []translink.StopTimetable) error {
	return f(ctx, stops)
}

// Option configures a Manager
type Option func(*Manager)

// WithPolicy sets the bulk load policy. Unknown values fall back to FailFast.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		if p == BestEffort {
			m.policy = BestEffort
		} else {
			m.policy = FailFast
		}
	}
}

// WithLimit caps concurrent fetches during bulk loads
func WithLimit(n int) Option {
	return func(m *Manager) {
		m.limit = n
	}
}

// WithListener registers l for collection changes
func WithListener(l Listener) Option {
	return func(m *Manager) {
		m.listener = l
	}
}

// Manager owns the stop collection
type Manager struct {
	fetcher  aggregate.Fetcher
	defaults []string
	policy   Policy
	limit    int
	listener Listener

	// writeMu serializes Load, Refresh, AddStop and RemoveStop
	writeMu sync.Mutex

	mu      sync.RWMutex
	stops   []translink.StopTimetable
	loading bool
	errMsg  string
	loaded  bool
}

// NewManager creates an empty manager. defaultIDs are loaded when Load is
// called without IDs or Refresh finds the collection empty.
func NewManager(fetcher aggregate.Fetcher, defaultIDs []string, opts ...Option) *Manager {
	m := &Manager{
		fetcher:  fetcher,
		defaults: append([]string(nil), defaultIDs...),
		policy:   FailFast,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current state
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Stops:   append([]translink.StopTimetable{}, m.stops...),
		Loading: m.loading,
		Error:   m.errMsg,
		State:   m.stateLocked(),
	}
}

// Stop returns the tracked timetable for stopID
func (m *Manager) Stop(stopID string) (translink.StopTimetable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stops {
		if s.ID == stopID {
			return s, true
		}
	}
	return translink.StopTimetable{}, false
}

// IDs returns the tracked stop IDs in collection order
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return idsOf(m.stops)
}

// Load fetches stopIDs (or the defaults when none are given) and replaces
// the collection. On failure the previous collection is kept and the error
// is recorded. If ctx is cancelled the result is discarded and the previous
// error is restored.
//
// The returned error belongs to this call only; it is nil on success and
// carries the same text as Snapshot().Error otherwise.
func (m *Manager) Load(ctx context.Context, stopIDs ...string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return m.loadLocked(ctx, stopIDs)
}

// Refresh reloads the currently tracked stops, or the defaults when the
// collection is empty. The IDs are read under the write lock, so adds and
// removes that finish first are not undone.
func (m *Manager) Refresh(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return m.loadLocked(ctx, m.IDs())
}

// loadLocked runs a bulk load; the caller holds writeMu
func (m *Manager) loadLocked(ctx context.Context, stopIDs []string) error {
	if len(stopIDs) == 0 {
		stopIDs = m.defaults
	}

	m.mu.Lock()
	prevErr := m.errMsg
	m.loading = true
	m.errMsg = ""
	m.mu.Unlock()

	stops, err := m.fetchAll(ctx, stopIDs)

	if ctx.Err() != nil {
		log.Printf("Manager: load of %d stops cancelled: %v", len(stopIDs), ctx.Err())
		m.mu.Lock()
		m.loading = false
		m.errMsg = prevErr
		m.mu.Unlock()
		return ctx.Err()
	}

	if err != nil {
		err = fmt.Errorf("Failed to load departure data: %w", err)
		log.Printf("Manager: %v", err)

		// best-effort keeps what it got, as long as it got anything
		if m.policy == BestEffort && len(stops) > 0 {
			m.publish(stops, err.Error())
			m.notify(ctx, stops)
			return err
		}

		m.mu.Lock()
		m.loading = false
		m.errMsg = err.Error()
		m.mu.Unlock()
		return err
	}

	m.publish(stops, "")
	m.notify(ctx, stops)
	return nil
}

// AddStop fetches one stop and appends it. A stop already in the collection
// is replaced in place. Failures, including a timetable answered for another
// stop, leave the collection unchanged and are returned.
func (m *Manager) AddStop(ctx context.Context, stopID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	prevErr := m.errMsg
	m.errMsg = ""
	m.mu.Unlock()

	timetable, err := m.fetcher.FetchTimetable(ctx, stopID)

	if ctx.Err() != nil {
		log.Printf("Manager: add of stop %s cancelled: %v", stopID, ctx.Err())
		m.mu.Lock()
		m.errMsg = prevErr
		m.mu.Unlock()
		return ctx.Err()
	}

	if err == nil && timetable.ID != stopID {
		err = fmt.Errorf("timetable returned for stop %q", timetable.ID)
	}
	if err != nil {
		err = fmt.Errorf("Failed to add stop %s: %w", stopID, err)
		log.Printf("Manager: %v", err)
		m.mu.Lock()
		m.errMsg = err.Error()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	next := append([]translink.StopTimetable{}, m.stops...)
	replaced := false
	for i := range next {
		if next[i].ID == stopID {
			next[i] = *timetable
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, *timetable)
	}
	m.stops = next
	m.loaded = true
	m.mu.Unlock()

	m.notify(ctx, next)
	return nil
}

// RemoveStop drops every entry with stopID. Removing an untracked stop is a no-op.
func (m *Manager) RemoveStop(ctx context.Context, stopID string) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	next := make([]translink.StopTimetable, 0, len(m.stops))
	for _, s := range m.stops {
		if s.ID != stopID {
			next = append(next, s)
		}
	}
	changed := len(next) != len(m.stops)
	if changed {
		m.stops = next
	}
	m.mu.Unlock()

	if changed {
		m.notify(ctx, next)
	}
}

func (m *Manager) fetchAll(ctx context.Context, stopIDs []string) ([]translink.StopTimetable, error) {
	opts := []aggregate.Option{aggregate.WithLimit(m.limit)}
	if m.policy == BestEffort {
		return aggregate.BestEffort(ctx, m.fetcher, stopIDs, opts...)
	}
	return aggregate.FailFast(ctx, m.fetcher, stopIDs, opts...)
}

func (m *Manager) publish(stops []translink.StopTimetable, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stops = stops
	m.loading = false
	m.errMsg = errMsg
	m.loaded = true
}

// notify runs the listener detached from the caller's cancellation; a
// client hanging up after a change must not stop it being persisted.
func (m *Manager) notify(ctx context.Context, stops []translink.StopTimetable) {
	if m.listener == nil {
		return
	}
	if err := m.listener.CollectionChanged(context.WithoutCancel(ctx), append([]translink.StopTimetable{}, stops...)); err != nil {
		log.Printf("Manager: listener failed: %v", err)
	}
}

func (m *Manager) stateLocked() State {
	switch {
	case m.loading:
		return StateLoading
	case m.errMsg != "":
		return StateError
	case m.loaded:
		return StateLoaded
	default:
		return StateIdle
	}
}

func idsOf(stops []translink.StopTimetable) []string {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}
