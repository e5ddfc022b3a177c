package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rodonguyen/FavStop/internal/api/models"
	"github.com/rodonguyen/FavStop/internal/stops"
)

// DelayRepository defines the interface for delay/alert history
type DelayRepository interface {
	GetActiveAlerts(ctx context.Context, stopID string) ([]models.ServiceAlert, error)
	GetHourlyDelayStats(ctx context.Context, routeID string, hours int) ([]models.DelayHourlyStat, error)
}

// SnapshotSource provides the current collection
type SnapshotSource interface {
	Snapshot() stops.Snapshot
}

// DelayHandler handles HTTP requests for delay and alert data
type DelayHandler struct {
	repo    DelayRepository
	current SnapshotSource
}

// NewDelayHandler creates a new handler with the given repository
func NewDelayHandler(repo DelayRepository, current SnapshotSource) *DelayHandler {
	return &DelayHandler{repo: repo, current: current}
}

// GetAlerts handles GET /api/alerts
// Query params: stop_id (optional)
func (h *DelayHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	alerts, err := h.repo.GetActiveAlerts(ctx, r.URL.Query().Get("stop_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alerts", nil)
		return
	}
	if alerts == nil {
		alerts = []models.ServiceAlert{}
	}

	writeJSON(w, http.StatusOK, models.AlertsResponse{
		Alerts:      alerts,
		Count:       len(alerts),
		LastChecked: time.Now().UTC(),
	})
}

// GetDelayStats handles GET /api/delays/stats
// Query params: route_id (optional), period (optional, default "24h", max "720h")
func (h *DelayHandler) GetDelayStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	routeID := r.URL.Query().Get("route_id")
	hours := parsePeriodHours(r.URL.Query().Get("period"))

	hourlyStats, err := h.repo.GetHourlyDelayStats(ctx, routeID, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get hourly delay stats", nil)
		return
	}
	if hourlyStats == nil {
		hourlyStats = []models.DelayHourlyStat{}
	}

	writeJSON(w, http.StatusOK, models.DelayStatsResponse{
		Summary:     models.Summarize(h.current.Snapshot().Stops),
		HourlyStats: hourlyStats,
		LastChecked: time.Now().UTC(),
	})
}

// parsePeriodHours reads periods like "24h" or "168h"; anything else is 24
func parsePeriodHours(period string) int {
	if len(period) > 1 && period[len(period)-1] == 'h' {
		if h, err := strconv.Atoi(period[:len(period)-1]); err == nil && h > 0 && h <= 720 {
			return h
		}
	}
	return 24
}
