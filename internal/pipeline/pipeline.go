package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/insider-api/internal/edgar"
	"github.com/ksred/insider-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Defaults and hard ceilings bounding worst-case work per invocation.
const (
	defaultDaysBack   = 30
	maxDaysBack       = 365
	defaultMaxFilings = 40
	maxFilingsCeiling = 100
)

// ErrAllCompaniesFailed is returned when not a single company in the request
// could be scraped, which usually means the registry is unreachable.
var ErrAllCompaniesFailed = errors.New("pipeline: all companies failed")

// Service drives the end-to-end acquisition flow: resolve CIK, list filings,
// skip the already-processed ones, then fetch, parse, normalize and commit
// one filing at a time.
type Service struct {
	db     *Database
	client *edgar.Client
	parser *edgar.Parser
}

// NewService creates the pipeline service. The registry client is shared with
// no one else; its limiter throttles everything this service does.
func NewService(gormDB *gorm.DB, client *edgar.Client, parser *edgar.Parser) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		client: client,
		parser: parser,
	}
}

// Run executes one pipeline invocation over the requested tickers,
// sequentially. Per-company failures are collected in the summary; Run itself
// only fails when the context is cancelled or every company failed.
func (s *Service) Run(ctx context.Context, req types.ScrapeRequest) (*types.ScrapeSummary, error) {
	daysBack := clamp(req.DaysBack, defaultDaysBack, maxDaysBack)
	maxFilings := clamp(req.MaxFilings, defaultMaxFilings, maxFilingsCeiling)

	summary := &types.ScrapeSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	logger := log.With().
		Str("component", "pipeline").
		Str("run_id", summary.RunID).
		Logger()
	logger.Info().
		Strs("tickers", req.Tickers).
		Int("days_back", daysBack).
		Int("max_filings", maxFilings).
		Msg("starting scrape run")

	failed := 0
	for _, ticker := range req.Tickers {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}

		result := s.runCompany(ctx, strings.ToUpper(strings.TrimSpace(ticker)), daysBack, maxFilings)
		summary.Companies = append(summary.Companies, result)
		summary.FilingsFound += result.FilingsFound
		summary.FilingsProcessed += result.FilingsProcessed
		summary.TradesCreated += result.TradesCreated
		if result.Error != "" {
			failed++
		}
	}

	summary.FinishedAt = time.Now()
	logger.Info().
		Int("filings_found", summary.FilingsFound).
		Int("filings_processed", summary.FilingsProcessed).
		Int("trades_created", summary.TradesCreated).
		Int("companies_failed", failed).
		Msg("scrape run finished")

	if len(req.Tickers) > 0 && failed == len(req.Tickers) {
		return summary, ErrAllCompaniesFailed
	}
	return summary, nil
}

// runCompany scrapes one company. Identifier resolution and index listing
// failures abort the company; anything that goes wrong inside an individual
// filing is contained there.
func (s *Service) runCompany(ctx context.Context, ticker string, daysBack, maxFilings int) types.CompanyResult {
	result := types.CompanyResult{Ticker: ticker}
	logger := log.With().
		Str("component", "pipeline").
		Str("ticker", ticker).
		Logger()

	company, err := s.resolveCompany(ctx, ticker)
	if err != nil {
		logger.Warn().Err(err).Msg("company resolution failed")
		result.Error = err.Error()
		return result
	}

	since := time.Now().AddDate(0, 0, -daysBack)
	entries, err := s.client.ListRecentFilings(ctx, company.CIK, since, maxFilings)
	if err != nil {
		logger.Warn().Err(err).Msg("filing index listing failed")
		result.Error = err.Error()
		return result
	}
	result.FilingsFound = len(entries)

	for _, entry := range entries {
		// Cancellation is honored between filings, never mid-filing, so
		// a stopped run leaves no partially written state.
		if ctx.Err() != nil {
			break
		}

		processed, err := s.db.IsFilingProcessed(entry.AccessionNo)
		if err != nil {
			logger.Error().Err(err).Str("accession_no", entry.AccessionNo).
				Msg("dedup lookup failed, skipping filing")
			continue
		}
		if processed {
			logger.Debug().Str("accession_no", entry.AccessionNo).
				Msg("filing already processed")
			continue
		}

		created, err := s.processFiling(ctx, company, entry)
		if err != nil {
			logger.Warn().Err(err).Str("accession_no", entry.AccessionNo).
				Msg("filing skipped")
			continue
		}

		result.FilingsProcessed++
		result.TradesCreated += created
	}

	return result
}

// resolveCompany returns the company row for a ticker, resolving its CIK via
// the registry's bulk dataset when it is not yet known locally.
func (s *Service) resolveCompany(ctx context.Context, ticker string) (*types.Company, error) {
	company, err := s.db.GetCompanyByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if company != nil && company.CIK != "" {
		return company, nil
	}

	cik, err := s.client.ResolveCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}

	name := ""
	if company != nil {
		name = company.Name
	}
	return s.db.UpsertCompany(ticker, cik, name)
}

// processFiling handles one filing end to end: fetch, parse, normalize,
// commit trades plus the processed marker. Nothing is marked until the commit
// succeeds, so a mid-filing failure leaves it eligible for retry.
func (s *Service) processFiling(ctx context.Context, company *types.Company, entry edgar.FilingIndexEntry) (int, error) {
	doc, err := s.client.FetchFilingDocument(ctx, entry.IndexURL)
	if err != nil {
		return 0, err
	}

	parsed, err := s.parser.Parse(doc)
	if err != nil {
		return 0, err
	}

	if parsed.Owner.Name == "" {
		return 0, fmt.Errorf("filing %s has no reporting owner", entry.AccessionNo)
	}

	// First successful parse fills in the issuer name the ticker file
	// lookup could not provide.
	if company.Name == "" && parsed.Issuer.Name != "" {
		if updated, err := s.db.UpsertCompany(company.Ticker, company.CIK, parsed.Issuer.Name); err == nil {
			*company = *updated
		}
	}

	insider, err := s.db.UpsertInsider(company.ID, insiderFromFiling(parsed.Owner))
	if err != nil {
		return 0, err
	}

	trades := buildTrades(parsed, company, insider, entry)
	record := &types.ProcessedFiling{
		AccessionNo: entry.AccessionNo,
		FilingURL:   entry.IndexURL,
		FilingDate:  entry.FilingDate,
		Ticker:      company.Ticker,
	}

	return s.db.CommitFiling(trades, record)
}

func clamp(value, fallback, ceiling int) int {
	if value <= 0 {
		return fallback
	}
	if value > ceiling {
		return ceiling
	}
	return value
}
