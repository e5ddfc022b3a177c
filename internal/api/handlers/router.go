package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig wires the handlers into a router
type RouterConfig struct {
	Stops          *StopHandler
	Delays         *DelayHandler
	Health         *HealthHandler
	Feed           *FeedHandler
	Metrics        http.Handler
	AllowedOrigins []string
}

// NewRouter builds the HTTP API. Nil handlers leave their routes unmounted.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.GetHealth)
	}
	r.Get("/healthz", Healthz)

	if cfg.Stops != nil {
		r.Get("/api/stops", cfg.Stops.GetStops)
		r.Post("/api/stops/refresh", cfg.Stops.Refresh)
		r.Get("/api/stops/{stopId}", cfg.Stops.GetStop)
		r.Post("/api/stops/{stopId}", cfg.Stops.AddStop)
		r.Delete("/api/stops/{stopId}", cfg.Stops.RemoveStop)
	}

	if cfg.Delays != nil {
		r.Get("/api/delays/stats", cfg.Delays.GetDelayStats)
		r.Get("/api/alerts", cfg.Delays.GetAlerts)
	}

	if cfg.Feed != nil {
		r.Get("/api/gtfs-rt/trip-updates", cfg.Feed.GetTripUpdates)
	}

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	return r
}
