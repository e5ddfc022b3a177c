package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rodonguyen/FavStop/internal/api/models"
)

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	db      Pinger
	current SnapshotSource
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, current SnapshotSource) *HealthHandler {
	return &HealthHandler{db: db, current: current}
}

// GetHealth handles GET /health
// 503 when the database is unreachable; upstream fetch errors do not fail the check
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	snap := h.current.Snapshot()
	resp := models.HealthResponse{
		Status:       "ok",
		Database:     "connected",
		State:        string(snap.State),
		TrackedStops: len(snap.Stops),
		LastError:    snap.Error,
		Timestamp:    time.Now().UTC(),
	}

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Healthz handles GET /healthz
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
