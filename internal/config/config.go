package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Aggregation policies accepted by AGGREGATE_POLICY
const (
	PolicyFailFast   = "fail-fast"
	PolicyBestEffort = "best-effort"
)

// Config holds all configuration for the departures service
type Config struct {
	// TransLink API
	BaseURL              string
	DefaultStopIDs       []string
	HTTPTimeout          time.Duration
	MaxConcurrentFetches int
	AggregatePolicy      string

	// Refresh loop
	RefreshInterval   time.Duration
	RetentionDuration time.Duration

	// Storage
	DatabasePath string
	DatabaseURL  string // optional Postgres store for tracked stops

	// HTTP API
	Port           string
	AllowedOrigins []string

	// Display
	DisplayTimezone string
	DepartureLimit  int
}

// FileConfig is the optional TOML overlay pointed to by FAVSTOP_CONFIG
type FileConfig struct {
	BaseURL         string   `toml:"base_url"`
	DefaultStopIDs  []string `toml:"default_stops"`
	RefreshSeconds  int      `toml:"refresh_seconds"`
	AggregatePolicy string   `toml:"aggregate_policy"`
	DisplayTimezone string   `toml:"display_timezone"`
}

// LoadDotEnv loads .env and then .env.local, the latter overriding existing values.
// Missing files are ignored.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local")
}

// Load reads configuration from environment variables with sensible defaults,
// then applies the TOML overlay if FAVSTOP_CONFIG is set.
func Load() (*Config, error) {
	cfg := &Config{
		// TransLink API
		BaseURL:              getEnv("TRANSLINK_BASE_URL", "https://jp.translink.com.au/api"),
		DefaultStopIDs:       getEnvList("DEFAULT_STOP_IDS", []string{"000876", "000635"}),
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT", 15)) * time.Second,
		MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 0),
		AggregatePolicy:      getEnv("AGGREGATE_POLICY", PolicyFailFast),

		// Refresh loop
		RefreshInterval:   time.Duration(getEnvInt("REFRESH_INTERVAL", 60)) * time.Second,
		RetentionDuration: time.Duration(getEnvInt("RETENTION_HOURS", 24)) * time.Hour,

		// Storage
		DatabasePath: getEnv("SQLITE_DATABASE", "data/favstop.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		// HTTP API
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		// Display
		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Australia/Brisbane"),
		DepartureLimit:  getEnvInt("DEPARTURE_LIMIT", 5),
	}

	if path := getEnv("FAVSTOP_CONFIG", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyFile(path string) error {
	var file FileConfig
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
	}
	if len(file.DefaultStopIDs) > 0 {
		cfg.DefaultStopIDs = file.DefaultStopIDs
	}
	if file.RefreshSeconds > 0 {
		cfg.RefreshInterval = time.Duration(file.RefreshSeconds) * time.Second
	}
	if file.AggregatePolicy != "" {
		cfg.AggregatePolicy = file.AggregatePolicy
	}
	if file.DisplayTimezone != "" {
		cfg.DisplayTimezone = file.DisplayTimezone
	}
	return nil
}

// Validate checks values that have no usable fallback
func (cfg *Config) Validate() error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("missing TransLink base URL")
	}
	if cfg.AggregatePolicy != PolicyFailFast && cfg.AggregatePolicy != PolicyBestEffort {
		return fmt.Errorf("unknown aggregate policy %q (want %q or %q)",
			cfg.AggregatePolicy, PolicyFailFast, PolicyBestEffort)
	}
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	return nil
}

// Location resolves DisplayTimezone, falling back to UTC
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
