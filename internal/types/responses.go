package types

import "time"

// ScrapeRequest is the invocation payload shared by the HTTP trigger, the CLI
// and the scheduler.
type ScrapeRequest struct {
	Tickers    []string `json:"tickers" binding:"required"`
	DaysBack   int      `json:"days_back,omitempty"`
	MaxFilings int      `json:"max_filings,omitempty"`
}

// CompanyResult reports the outcome of one company's scrape.
type CompanyResult struct {
	Ticker           string `json:"ticker"`
	FilingsFound     int    `json:"filings_found"`
	FilingsProcessed int    `json:"filings_processed"`
	TradesCreated    int    `json:"trades_created"`
	Error            string `json:"error,omitempty"`
}

// ScrapeSummary is the aggregate result of one pipeline invocation.
type ScrapeSummary struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	FilingsFound     int             `json:"filings_found"`
	FilingsProcessed int             `json:"filings_processed"`
	TradesCreated    int             `json:"trades_created"`
	Companies        []CompanyResult `json:"companies"`
}

// Errors returns the per-company failures collected during a run.
func (s *ScrapeSummary) Errors() []string {
	var errs []string
	for _, c := range s.Companies {
		if c.Error != "" {
			errs = append(errs, c.Ticker+": "+c.Error)
		}
	}
	return errs
}
