package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "insider.db", cfg.DatabasePath)
	assert.Equal(t, 4*time.Hour, cfg.ScrapeInterval)
	assert.Empty(t, cfg.ScrapeTickers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SEC_USER_AGENT", "Acme Inc admin@acme.com")
	t.Setenv("SCRAPE_TICKERS", "aapl, msft ,,tsla")
	t.Setenv("SCRAPE_INTERVAL", "30m")
	t.Setenv("SCRAPE_DAYS_BACK", "90")

	cfg := FromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "Acme Inc admin@acme.com", cfg.SECUserAgent)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, cfg.ScrapeTickers)
	assert.Equal(t, 30*time.Minute, cfg.ScrapeInterval)
	assert.Equal(t, 90, cfg.DaysBack)
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("SCRAPE_INTERVAL", "not-a-duration")
	t.Setenv("SCRAPE_DAYS_BACK", "ninety")

	cfg := FromEnv()

	assert.Equal(t, 4*time.Hour, cfg.ScrapeInterval)
	assert.Zero(t, cfg.DaysBack)
}
