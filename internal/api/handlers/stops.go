package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rodonguyen/FavStop/internal/api/models"
	"github.com/rodonguyen/FavStop/internal/stops"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// StopManager is the stop collection as seen by the HTTP layer
type StopManager interface {
	Snapshot() stops.Snapshot
	Stop(stopID string) (translink.StopTimetable, bool)
	AddStop(ctx context.Context, stopID string) error
	RemoveStop(ctx context.Context, stopID string)
	Refresh(ctx context.Context) error
}

// StopHandler handles HTTP requests for tracked stops
type StopHandler struct {
	manager StopManager
	limit   int
	loc     *time.Location
}

// NewStopHandler creates a handler rendering at most limit departures per
// stop, with clock times in loc
func NewStopHandler(manager StopManager, limit int, loc *time.Location) *StopHandler {
	return &StopHandler{manager: manager, limit: limit, loc: loc}
}

// GetStops handles GET /api/stops
func (h *StopHandler) GetStops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stopsResponse(h.manager.Snapshot()))
}

// GetStop handles GET /api/stops/{stopId}
func (h *StopHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")

	st, ok := h.manager.Stop(stopID)
	if !ok {
		writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": stopID})
		return
	}

	writeJSON(w, http.StatusOK, models.NewStopView(st, h.limit, h.loc))
}

// AddStop handles POST /api/stops/{stopId}
// Returns 201 with the new stop card, or 502 when the timetable could not be fetched
func (h *StopHandler) AddStop(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")

	if err := h.manager.AddStop(r.Context(), stopID); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to add stop", map[string]interface{}{
			"stopId":  stopID,
			"message": err.Error(),
		})
		return
	}

	st, ok := h.manager.Stop(stopID)
	if !ok {
		// removed again before we could render it
		writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": stopID})
		return
	}

	writeJSON(w, http.StatusCreated, models.NewStopView(st, h.limit, h.loc))
}

// RemoveStop handles DELETE /api/stops/{stopId}
func (h *StopHandler) RemoveStop(w http.ResponseWriter, r *http.Request) {
	h.manager.RemoveStop(r.Context(), chi.URLParam(r, "stopId"))
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/stops/refresh
// The body is the snapshot after the refresh; 502 when this refresh failed
func (h *StopHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.manager.Refresh(r.Context())

	snap := h.manager.Snapshot()
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, h.stopsResponse(snap))
}

func (h *StopHandler) stopsResponse(snap stops.Snapshot) models.StopsResponse {
	views := models.NewStopViews(snap.Stops, h.limit, h.loc)
	return models.StopsResponse{
		Stops:       views,
		Count:       len(views),
		Loading:     snap.Loading,
		Error:       snap.Error,
		State:       string(snap.State),
		LastChecked: time.Now().UTC(),
	}
}
