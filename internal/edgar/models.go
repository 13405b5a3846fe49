package edgar

import "time"

// Transaction classifications derived from Form 4 coding.
const (
	TxBuy   = "BUY"
	TxSell  = "SELL"
	TxOther = "OTHER"
)

// Ownership types reported in the ownership nature block.
const (
	OwnershipDirect   = "Direct"
	OwnershipIndirect = "Indirect"
)

// FilingIndexEntry is one filing discovered in the registry's index feed.
type FilingIndexEntry struct {
	AccessionNo string
	IndexURL    string
	FilingDate  time.Time
}

// Issuer identifies the company whose securities were transacted.
type Issuer struct {
	CIK    string
	Name   string
	Ticker string
}

// ReportingOwner identifies the insider filing the disclosure and the
// relationship that obligates them to file.
type ReportingOwner struct {
	CIK           string
	Name          string
	IsDirector    bool
	IsOfficer     bool
	IsTenPctOwner bool
	IsOther       bool
	OfficerTitle  string
}

// RawTransaction is one row from a Form 4 transaction table, already
// sanity-filtered by the parser. PricePerShare and TotalValue are zero when
// the filing omits them.
type RawTransaction struct {
	SecurityTitle string
	Date          time.Time
	Code          string
	Type          string // BUY, SELL or OTHER
	Shares        float64
	PricePerShare float64
	TotalValue    float64
	SharesOwned   float64
	OwnershipType string // Direct or Indirect
	IsDerivative  bool
}

// ParsedFiling is the in-memory representation of one parsed Form 4. It lives
// only for the duration of a single filing's processing.
type ParsedFiling struct {
	Issuer       Issuer
	Owner        ReportingOwner
	Transactions []RawTransaction
}
