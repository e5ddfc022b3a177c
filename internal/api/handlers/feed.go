package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/rodonguyen/FavStop/internal/feed"
)

// FeedHandler serves the collection as GTFS-Realtime
type FeedHandler struct {
	current SnapshotSource
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(current SnapshotSource) *FeedHandler {
	return &FeedHandler{current: current}
}

// GetTripUpdates handles GET /api/gtfs-rt/trip-updates
// Query params: format=json for protojson, protobuf otherwise
func (h *FeedHandler) GetTripUpdates(w http.ResponseWriter, r *http.Request) {
	msg := feed.Build(h.current.Snapshot().Stops, time.Now())

	contentType := "application/x-protobuf"
	encode := feed.Marshal
	if r.URL.Query().Get("format") == "json" {
		contentType = "application/json"
		encode = feed.MarshalJSON
	}

	body, err := encode(msg)
	if err != nil {
		log.Printf("Handler: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to encode feed", nil)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
