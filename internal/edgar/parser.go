package edgar

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Sanity bounds on a single transaction. Anything above these is almost
// always a mis-filed value (typically the post-transaction holding pasted
// into the amount column), so the parser drops the row before any caller
// can see it.
var (
	maxTransactionShares = decimal.NewFromInt(100_000_000)
	maxTransactionValue  = decimal.NewFromInt(10_000_000_000)
)

const transactionDateLayout = "2006-01-02"

// NumericPolicy controls what the parser does with a share or price field it
// cannot parse as a decimal.
type NumericPolicy int

const (
	// NumericZeroOnError records the field as zero and keeps the
	// transaction. This matches how filers' blank fields have historically
	// been treated, at the cost of admitting zero-share rows.
	NumericZeroOnError NumericPolicy = iota
	// NumericDropOnError discards the whole transaction instead.
	NumericDropOnError
)

// ParseError reports a filing document that could not be decoded even after
// sanitization. Callers treat it as a per-filing skip.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("form 4 parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns raw Form 4 documents into ParsedFilings. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	policy NumericPolicy
	logger zerolog.Logger
}

func NewParser(policy NumericPolicy) *Parser {
	return &Parser{
		policy: policy,
		logger: log.With().Str("component", "form4_parser").Logger(),
	}
}

// Form 4 ownershipDocument wire structures. Every leaf the amounts tables
// carry is wrapped in a <value> element.
type xmlValue struct {
	Value string `xml:"value"`
}

type xmlIssuer struct {
	CIK    string `xml:"issuerCik"`
	Name   string `xml:"issuerName"`
	Ticker string `xml:"issuerTradingSymbol"`
}

type xmlReportingOwner struct {
	ID struct {
		CIK  string `xml:"rptOwnerCik"`
		Name string `xml:"rptOwnerName"`
	} `xml:"reportingOwnerId"`
	Relationship struct {
		IsDirector    string `xml:"isDirector"`
		IsOfficer     string `xml:"isOfficer"`
		IsTenPctOwner string `xml:"isTenPercentOwner"`
		IsOther       string `xml:"isOther"`
		OfficerTitle  string `xml:"officerTitle"`
	} `xml:"reportingOwnerRelationship"`
}

type xmlTransaction struct {
	SecurityTitle xmlValue `xml:"securityTitle"`
	Date          xmlValue `xml:"transactionDate"`
	Coding        struct {
		Code string `xml:"transactionCode"`
	} `xml:"transactionCoding"`
	Amounts struct {
		Shares  xmlValue `xml:"transactionShares"`
		Price   xmlValue `xml:"transactionPricePerShare"`
		AcqDisp xmlValue `xml:"transactionAcquiredDisposedCode"`
	} `xml:"transactionAmounts"`
	PostAmounts struct {
		SharesOwned xmlValue `xml:"sharesOwnedFollowingTransaction"`
	} `xml:"postTransactionAmounts"`
	Nature struct {
		DirectOrIndirect xmlValue `xml:"directOrIndirectOwnership"`
	} `xml:"ownershipNature"`
}

type xmlOwnershipDocument struct {
	XMLName         xml.Name            `xml:"ownershipDocument"`
	Issuer          xmlIssuer           `xml:"issuer"`
	ReportingOwners []xmlReportingOwner `xml:"reportingOwner"`
	NonDerivative   struct {
		Transactions []xmlTransaction `xml:"nonDerivativeTransaction"`
	} `xml:"nonDerivativeTable"`
	Derivative struct {
		Transactions []xmlTransaction `xml:"derivativeTransaction"`
	} `xml:"derivativeTable"`
}

// Parse decodes one Form 4 document. Filings are inconsistently formatted
// across years and filers, so the document is sanitized first and decoded in
// non-strict mode; only when that still fails does the caller get a
// ParseError. Individual bad transactions are dropped without failing the
// filing.
func (p *Parser) Parse(doc []byte) (*ParsedFiling, error) {
	decoder := xml.NewDecoder(bytes.NewReader(sanitizeXML(doc)))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	var raw xmlOwnershipDocument
	if err := decoder.Decode(&raw); err != nil {
		return nil, &ParseError{Err: err}
	}

	filing := &ParsedFiling{
		Issuer: Issuer{
			CIK:    strings.TrimSpace(raw.Issuer.CIK),
			Name:   strings.TrimSpace(raw.Issuer.Name),
			Ticker: strings.ToUpper(strings.TrimSpace(raw.Issuer.Ticker)),
		},
	}

	if len(raw.ReportingOwners) > 0 {
		owner := raw.ReportingOwners[0]
		filing.Owner = ReportingOwner{
			CIK:           strings.TrimSpace(owner.ID.CIK),
			Name:          strings.TrimSpace(owner.ID.Name),
			IsDirector:    xmlFlag(owner.Relationship.IsDirector),
			IsOfficer:     xmlFlag(owner.Relationship.IsOfficer),
			IsTenPctOwner: xmlFlag(owner.Relationship.IsTenPctOwner),
			IsOther:       xmlFlag(owner.Relationship.IsOther),
			OfficerTitle:  strings.TrimSpace(owner.Relationship.OfficerTitle),
		}
	}

	for _, tx := range raw.NonDerivative.Transactions {
		if parsed, ok := p.parseTransaction(tx, false); ok {
			filing.Transactions = append(filing.Transactions, parsed)
		}
	}
	for _, tx := range raw.Derivative.Transactions {
		if parsed, ok := p.parseTransaction(tx, true); ok {
			filing.Transactions = append(filing.Transactions, parsed)
		}
	}

	return filing, nil
}

// parseTransaction extracts one table row. Both tables share this routine;
// only the derivative flag differs. Returns ok=false when the row must be
// dropped (bad date, unparsable numeric under NumericDropOnError, or a
// sanity-bound violation).
func (p *Parser) parseTransaction(tx xmlTransaction, derivative bool) (RawTransaction, bool) {
	date, err := time.Parse(transactionDateLayout, strings.TrimSpace(tx.Date.Value))
	if err != nil {
		p.logger.Warn().
			Str("raw_date", tx.Date.Value).
			Msg("dropping transaction with unparsable date")
		return RawTransaction{}, false
	}

	shares, ok := p.parseDecimal(tx.Amounts.Shares.Value)
	if !ok {
		p.logger.Warn().Str("raw_shares", tx.Amounts.Shares.Value).
			Msg("dropping transaction with unparsable share count")
		return RawTransaction{}, false
	}
	price, ok := p.parseDecimal(tx.Amounts.Price.Value)
	if !ok {
		p.logger.Warn().Str("raw_price", tx.Amounts.Price.Value).
			Msg("dropping transaction with unparsable price")
		return RawTransaction{}, false
	}
	sharesOwned, _ := p.parseDecimal(tx.PostAmounts.SharesOwned.Value)

	total := shares.Mul(price)

	if shares.GreaterThan(maxTransactionShares) || total.GreaterThan(maxTransactionValue) {
		p.logger.Warn().
			Str("shares", shares.String()).
			Str("total_value", total.String()).
			Str("code", tx.Coding.Code).
			Msg("dropping transaction exceeding sanity bounds")
		return RawTransaction{}, false
	}

	code := strings.ToUpper(strings.TrimSpace(tx.Coding.Code))
	acqDisp := strings.ToUpper(strings.TrimSpace(tx.Amounts.AcqDisp.Value))

	sharesF, _ := shares.Float64()
	priceF, _ := price.Float64()
	totalF, _ := total.Float64()
	ownedF, _ := sharesOwned.Float64()

	return RawTransaction{
		SecurityTitle: strings.TrimSpace(tx.SecurityTitle.Value),
		Date:          date,
		Code:          code,
		Type:          classifyTransaction(code, acqDisp),
		Shares:        sharesF,
		PricePerShare: priceF,
		TotalValue:    totalF,
		SharesOwned:   ownedF,
		OwnershipType: ownershipType(tx.Nature.DirectOrIndirect.Value),
		IsDerivative:  derivative,
	}, true
}

// parseDecimal applies the configured numeric policy. An empty field always
// means zero; only genuinely malformed values are subject to the policy.
func (p *Parser) parseDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		if p.policy == NumericDropOnError {
			return decimal.Zero, false
		}
		return decimal.Zero, true
	}
	return d, true
}

// classifyTransaction prefers the explicit acquired/disposed indicator and
// falls back to the transaction code when the indicator is missing.
// Code P is an open-market purchase, A an award/grant, S an open-market sale.
func classifyTransaction(code, acqDisp string) string {
	switch acqDisp {
	case "A":
		return TxBuy
	case "D":
		return TxSell
	}
	switch code {
	case "P", "A":
		return TxBuy
	case "S":
		return TxSell
	}
	return TxOther
}

func ownershipType(raw string) string {
	if strings.ToUpper(strings.TrimSpace(raw)) == "I" {
		return OwnershipIndirect
	}
	return OwnershipDirect
}

func xmlFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true":
		return true
	}
	return false
}
