package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects the environment settings the server needs. The contact
// user agent is validated by the EDGAR client constructor, not here.
type Config struct {
	Port           string
	DatabasePath   string
	JWTSecret      string
	SECUserAgent   string
	ScrapeTickers  []string
	ScrapeInterval time.Duration
	DaysBack       int
	MaxFilings     int
}

// FromEnv reads configuration from the environment with sensible defaults.
func FromEnv() Config {
	return Config{
		Port:           envOr("PORT", "8080"),
		DatabasePath:   envOr("DATABASE_PATH", "insider.db"),
		JWTSecret:      envOr("JWT_SECRET", "insider-secret-key"),
		SECUserAgent:   os.Getenv("SEC_USER_AGENT"),
		ScrapeTickers:  splitList(os.Getenv("SCRAPE_TICKERS")),
		ScrapeInterval: envDuration("SCRAPE_INTERVAL", 4*time.Hour),
		DaysBack:       envInt("SCRAPE_DAYS_BACK", 0),
		MaxFilings:     envInt("SCRAPE_MAX_FILINGS", 0),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
