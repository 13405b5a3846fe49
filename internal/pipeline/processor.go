package pipeline

import (
	"context"
	"time"

	"github.com/ksred/insider-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Processor runs the pipeline on a schedule with a fixed request: the
// configured ticker list plus the operator's days-back window and per-company
// filing cap. Retries of failed filings happen naturally on the next cycle
// via the processed-filing dedup check.
type Processor struct {
	service  *Service
	request  types.ScrapeRequest
	interval time.Duration
}

func NewProcessor(service *Service, request types.ScrapeRequest, interval time.Duration) *Processor {
	return &Processor{
		service:  service,
		request:  request,
		interval: interval,
	}
}

// Start begins the scheduled scrape loop. It blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "scrape_processor").Logger()

	if len(p.request.Tickers) == 0 {
		logger.Info().Msg("no tickers configured, scheduler idle")
		return
	}
	logger.Info().
		Strs("tickers", p.request.Tickers).
		Int("days_back", p.request.DaysBack).
		Int("max_filings", p.request.MaxFilings).
		Dur("interval", p.interval).
		Msg("starting scrape scheduler")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down scrape scheduler")
			return
		case <-ticker.C:
			summary, err := p.service.Run(ctx, p.request)
			if err != nil {
				logger.Error().Err(err).Msg("scheduled scrape run failed")
				continue
			}
			logger.Info().
				Str("run_id", summary.RunID).
				Int("filings_processed", summary.FilingsProcessed).
				Int("trades_created", summary.TradesCreated).
				Strs("errors", summary.Errors()).
				Msg("scheduled scrape run complete")
		}
	}
}
