package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rodonguyen/FavStop/internal/api/handlers"
	"github.com/rodonguyen/FavStop/internal/api/repository"
	"github.com/rodonguyen/FavStop/internal/config"
	"github.com/rodonguyen/FavStop/internal/db"
	"github.com/rodonguyen/FavStop/internal/history"
	"github.com/rodonguyen/FavStop/internal/metrics"
	"github.com/rodonguyen/FavStop/internal/stops"
	"github.com/rodonguyen/FavStop/internal/translink"
)

func main() {
	log.Println("Starting FavStop departures service...")

	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Config loaded: base_url=%s, refresh=%v, policy=%s, retention=%v",
		cfg.BaseURL, cfg.RefreshInterval, cfg.AggregatePolicy, cfg.RetentionDuration)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Initialize Database
	// ═══════════════════════════════════════════════════════
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	readDB, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open read pool: %v", err)
	}
	defer readDB.Close()

	var tracked history.TrackedStore = database
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgresTrackedStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		tracked = pg
		log.Println("Tracked stops stored in Postgres")
	}
	log.Println("Database initialized")

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Initialize Client, Metrics and Manager
	// ═══════════════════════════════════════════════════════
	registry := metrics.NewRegistry()
	promMetrics := metrics.NewMetrics(registry)

	client := translink.NewClient(cfg.BaseURL, translink.NewHTTPClient(cfg.HTTPTimeout),
		translink.WithObserver(promMetrics))

	recorder := history.NewRecorder(tracked, database, promMetrics)
	manager := stops.NewManager(client, cfg.DefaultStopIDs,
		stops.WithPolicy(stops.Policy(cfg.AggregatePolicy)),
		stops.WithLimit(cfg.MaxConcurrentFetches),
		stops.WithListener(recorder),
	)

	initial, err := history.InitialStops(ctx, tracked, cfg.DefaultStopIDs)
	if err != nil {
		log.Printf("Warning: %v, using defaults", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Initial Load + Refresh Loop
	// ═══════════════════════════════════════════════════════
	log.Printf("Running initial load of %d stops...", len(initial))
	if err := manager.Load(ctx, initial...); err != nil {
		log.Printf("Initial load failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				refreshOnce(ctx, manager, database, cfg)
			case <-ctx.Done():
				log.Println("Refresh loop stopped")
				return
			}
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 4: HTTP API
	// ═══════════════════════════════════════════════════════
	router := handlers.NewRouter(handlers.RouterConfig{
		Stops:          handlers.NewStopHandler(manager, cfg.DepartureLimit, cfg.Location()),
		Delays:         handlers.NewDelayHandler(repository.NewSQLiteDelayRepository(readDB.GetDB()), manager),
		Health:         handlers.NewHealthHandler(readDB, manager),
		Feed:           handlers.NewFeedHandler(manager),
		Metrics:        metrics.Handler(registry),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("API server starting on :%s", cfg.Port)
		log.Println("Stop endpoints:")
		log.Println("  GET    /api/stops")
		log.Println("  GET    /api/stops/{stopId}")
		log.Println("  POST   /api/stops/{stopId}")
		log.Println("  DELETE /api/stops/{stopId}")
		log.Println("  POST   /api/stops/refresh")
		log.Println("History endpoints:")
		log.Println("  GET /api/delays/stats")
		log.Println("  GET /api/alerts")
		log.Println("  GET /api/gtfs-rt/trip-updates")
		log.Println("Health:")
		log.Println("  GET /health (with database check)")
		log.Println("  GET /metrics")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

func refreshOnce(ctx context.Context, manager *stops.Manager, database *db.DB, cfg *config.Config) {
	if err := manager.Refresh(ctx); err != nil {
		log.Printf("Refresh: %v", err)
	}

	if err := database.Cleanup(ctx, cfg.RetentionDuration); err != nil {
		log.Printf("Cleanup error: %v", err)
	}
}
