// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the pipeline service.
type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	RejectReasonsFile string // optional YAML override of the built-in reason set
	ReportIntervalMin int    // how often the stage-count reporter fires
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("PIPELINE_PORT")
	if port == "" {
		port = "8084"
	}

	interval := 1
	if s := os.Getenv("REPORT_INTERVAL_MINUTES"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("REPORT_INTERVAL_MINUTES must be a positive integer, got %q", s)
		}
		interval = v
	}

	return &Config{
		Port:              port,
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		RejectReasonsFile: os.Getenv("REJECT_REASONS_FILE"),
		ReportIntervalMin: interval,
	}, nil
}
