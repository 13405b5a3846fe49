package types

import (
	"time"

	"gorm.io/gorm"
)

type Company struct {
	gorm.Model `json:"-"`
	Ticker     string `gorm:"uniqueIndex" json:"ticker"`
	CIK        string `gorm:"index" json:"cik"`
	Name       string `json:"name"`
}

type Insider struct {
	gorm.Model `json:"-"`
	CompanyID  uint   `gorm:"index:idx_insider_identity,unique" json:"company_id"`
	Name       string `gorm:"index:idx_insider_identity,unique" json:"name"`
	CIK        string `json:"cik"`
	IsDirector bool   `json:"is_director"`
	IsOfficer  bool   `json:"is_officer"`
	IsTenPct   bool   `json:"is_ten_percent_owner"`
	Title      string `json:"title,omitempty"`
}

type InsiderTrade struct {
	gorm.Model      `json:"-"`
	CompanyID       uint      `gorm:"index" json:"company_id"`
	InsiderID       uint      `gorm:"index" json:"insider_id"`
	TransactionDate time.Time `json:"transaction_date"`
	FilingDate      time.Time `json:"filing_date"`
	TransactionType string    `json:"transaction_type"` // BUY, SELL or OTHER
	Shares          float64   `json:"shares"`
	PricePerShare   float64   `json:"price_per_share,omitempty"`
	TotalValue      float64   `json:"total_value,omitempty"`
	SharesOwned     float64   `json:"shares_owned_after"`
	OwnershipType   string    `json:"ownership_type"` // Direct or Indirect
	IsDerivative    bool      `json:"is_derivative"`
	FilingURL       string    `json:"filing_url"`
}

// ProcessedFiling marks a filing as fully ingested. A row is written exactly
// once, after every trade extracted from the filing has committed; re-scrapes
// that see the same accession number skip the filing entirely.
type ProcessedFiling struct {
	gorm.Model  `json:"-"`
	AccessionNo string    `gorm:"uniqueIndex" json:"accession_no"`
	FilingURL   string    `gorm:"uniqueIndex" json:"filing_url"`
	FilingDate  time.Time `json:"filing_date"`
	Ticker      string    `gorm:"index" json:"ticker,omitempty"`
	TradeCount  int       `json:"trade_count"`
	ProcessedAt time.Time `json:"processed_at"`
}
