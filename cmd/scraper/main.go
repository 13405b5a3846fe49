package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/insider-api/internal/config"
	"github.com/ksred/insider-api/internal/database"
	"github.com/ksred/insider-api/internal/edgar"
	"github.com/ksred/insider-api/internal/pipeline"
	"github.com/ksred/insider-api/internal/types"
)

// init configures the logger with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// main runs one ad-hoc pipeline invocation from the command line. It uses the
// same orchestrator entry point as the server's scheduler and trigger
// endpoint, so a manual run behaves exactly like a scheduled one.
func main() {
	tickers := flag.String("tickers", "", "comma-separated tickers to scrape (required)")
	daysBack := flag.Int("days", 0, "how many days back to look (default 30, capped at 365)")
	maxFilings := flag.Int("max", 0, "max filings per company (default 40, capped at 100)")
	flag.Parse()

	if *tickers == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	limiter := edgar.NewLimiter(10, time.Second)
	client, err := edgar.NewClient(cfg.SECUserAgent, limiter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize EDGAR client")
	}

	service := pipeline.NewService(db, client, edgar.NewParser(edgar.NumericZeroOnError))

	// A long batch can be interrupted cleanly; cancellation is honored
	// between filings, so committed work stays committed.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := types.ScrapeRequest{
		Tickers:    splitTickers(*tickers),
		DaysBack:   *daysBack,
		MaxFilings: *maxFilings,
	}

	summary, err := service.Run(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("scrape run failed")
	}

	for _, company := range summary.Companies {
		event := log.Info()
		if company.Error != "" {
			event = log.Warn().Str("error", company.Error)
		}
		event.
			Str("ticker", company.Ticker).
			Int("filings_found", company.FilingsFound).
			Int("filings_processed", company.FilingsProcessed).
			Int("trades_created", company.TradesCreated).
			Msg("company result")
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("filings_processed", summary.FilingsProcessed).
		Int("trades_created", summary.TradesCreated).
		Dur("took", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("scrape run complete")
}

func splitTickers(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
