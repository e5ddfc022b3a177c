package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rodonguyen/FavStop/internal/api/models"
	"github.com/rodonguyen/FavStop/internal/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteDB is a read-side SQLite connection pool
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens a read pool on dbPath. The writer owns the schema.
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal=WAL&_fk=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLiteDB) GetDB() *sql.DB {
	return s.db
}

// Ping checks the connection
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SQLiteDelayRepository reads delay statistics and alerts
type SQLiteDelayRepository struct {
	db *sql.DB
}

// NewSQLiteDelayRepository creates a new SQLiteDelayRepository
func NewSQLiteDelayRepository(db *sql.DB) *SQLiteDelayRepository {
	return &SQLiteDelayRepository{db: db}
}

// GetActiveAlerts returns active alerts, newest first, optionally for one stop
func (r *SQLiteDelayRepository) GetActiveAlerts(ctx context.Context, stopID string) ([]models.ServiceAlert, error) {
	query := `
		SELECT alert_id, stop_id, message, kind, is_active, first_seen_at, last_seen_at, resolved_at
		FROM service_alerts
		WHERE is_active = 1
	`
	var args []interface{}
	if stopID != "" {
		query += " AND stop_id = ?"
		args = append(args, stopID)
	}
	query += " ORDER BY last_seen_at DESC, alert_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.ServiceAlert, 0)
	for rows.Next() {
		var a models.ServiceAlert
		if err := rows.Scan(&a.AlertID, &a.StopID, &a.Message, &a.Kind, &a.IsActive, &a.FirstSeenAt, &a.LastSeenAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetHourlyDelayStats returns hourly buckets from the last hours, newest first
func (r *SQLiteDelayRepository) GetHourlyDelayStats(ctx context.Context, routeID string, hours int) ([]models.DelayHourlyStat, error) {
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Truncate(time.Hour).Format(time.RFC3339)

	query := `
		SELECT route_id, hour_bucket, observation_count, delay_mean_seconds, delay_m2,
			on_time_count, max_delay_seconds
		FROM stats_delay_hourly
		WHERE hour_bucket >= ?
	`
	args := []interface{}{since}
	if routeID != "" {
		query += " AND route_id = ?"
		args = append(args, routeID)
	}
	query += " ORDER BY hour_bucket DESC, route_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delay stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.DelayHourlyStat, 0)
	for rows.Next() {
		var s models.DelayHourlyStat
		var w metrics.WelfordState
		var onTime int
		if err := rows.Scan(&s.RouteID, &s.HourBucket, &w.Count, &w.Mean, &w.M2, &onTime, &s.MaxDelaySeconds); err != nil {
			return nil, fmt.Errorf("failed to scan delay stats: %w", err)
		}

		s.ObservationCount = w.Count
		s.MeanDelaySeconds = w.Mean
		s.StdDevSeconds = w.StdDev()
		if w.Count > 0 {
			s.OnTimePercent = float64(onTime) / float64(w.Count) * 100
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
