package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dukerupert/tempo/internal/database"
	"github.com/dukerupert/tempo/internal/normalize"
)

type Config struct {
	Port        string
	DBDriver    string
	DBDSN       string
	LogLevel    string
	HabitAnchor normalize.TimeOfDay
	Location    *time.Location
	SweepSpec   string
	SweepGrace  time.Duration
	RateLimit   int
}

// Load reads an optional .env file and then the TEMPO_* environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:      getEnvOrDefault("TEMPO_PORT", "8080"),
		DBDriver:  getEnvOrDefault("TEMPO_DB_DRIVER", database.DriverSQLite),
		DBDSN:     getEnvOrDefault("TEMPO_DB_DSN", "tempo.db"),
		LogLevel:  getEnvOrDefault("TEMPO_LOG_LEVEL", "info"),
		SweepSpec: getEnvOrDefault("TEMPO_SWEEP_SCHEDULE", "@every 5m"),
	}
	// An explicitly empty schedule disables the sweeper.
	if v, ok := os.LookupEnv("TEMPO_SWEEP_SCHEDULE"); ok && v == "" {
		cfg.SweepSpec = ""
	}

	switch cfg.DBDriver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return nil, fmt.Errorf("TEMPO_DB_DRIVER: unsupported driver %q", cfg.DBDriver)
	}

	anchor, err := normalize.ParseTimeOfDay(getEnvOrDefault("TEMPO_HABIT_ANCHOR", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("TEMPO_HABIT_ANCHOR: %w", err)
	}
	cfg.HabitAnchor = anchor

	loc, err := loadLocation(getEnvOrDefault("TEMPO_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("TEMPO_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	grace, err := time.ParseDuration(getEnvOrDefault("TEMPO_SWEEP_GRACE", "15m"))
	if err != nil {
		return nil, fmt.Errorf("TEMPO_SWEEP_GRACE: %w", err)
	}
	if grace < 0 {
		return nil, fmt.Errorf("TEMPO_SWEEP_GRACE: must not be negative, got %s", grace)
	}
	cfg.SweepGrace = grace

	if cfg.SweepSpec != "" {
		if _, err := cron.ParseStandard(cfg.SweepSpec); err != nil {
			return nil, fmt.Errorf("TEMPO_SWEEP_SCHEDULE: %w", err)
		}
	}

	limit, err := strconv.Atoi(getEnvOrDefault("TEMPO_RATE_LIMIT", "120"))
	if err != nil || limit < 1 {
		return nil, fmt.Errorf("TEMPO_RATE_LIMIT: want a positive integer, got %q", os.Getenv("TEMPO_RATE_LIMIT"))
	}
	cfg.RateLimit = limit

	return cfg, nil
}

// Policy returns the normalization policy described by the config.
func (c *Config) Policy() normalize.Policy {
	return normalize.Policy{
		HabitAnchor:     c.HabitAnchor,
		DefaultTaskTime: normalize.DefaultPolicy().DefaultTaskTime,
		Location:        c.Location,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadLocation resolves name to a zone. "Local" is resolved to the IANA name
// behind the process zone so that events record a zone that loads back to
// the same rules.
func loadLocation(name string) (*time.Location, error) {
	if name != "Local" {
		return time.LoadLocation(name)
	}
	if tz, ok := os.LookupEnv("TZ"); ok {
		tz = strings.TrimPrefix(tz, ":")
		if tz == "" {
			return time.UTC, nil
		}
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc, nil
		}
	}
	if target, err := filepath.EvalSymlinks("/etc/localtime"); err == nil {
		if _, zone, ok := strings.Cut(target, "zoneinfo/"); ok {
			if loc, err := time.LoadLocation(zone); err == nil {
				return loc, nil
			}
		}
	}
	return time.Local, nil
}
