package pipeline

import (
	"errors"
	"time"

	"github.com/ksred/insider-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetCompanyByTicker returns nil, nil when the ticker is unknown.
func (d *Database) GetCompanyByTicker(ticker string) (*types.Company, error) {
	var company types.Company
	if err := d.db.Where("ticker = ?", ticker).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

// UpsertCompany creates the company row for a ticker or refreshes its CIK and
// name on an existing row.
func (d *Database) UpsertCompany(ticker, cik, name string) (*types.Company, error) {
	var company types.Company
	err := d.db.Where(types.Company{Ticker: ticker}).
		Assign(types.Company{CIK: cik, Name: name}).
		FirstOrCreate(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// UpsertInsider resolves an insider by name within a company, creating the
// row on first sight and refreshing role flags on subsequent filings.
func (d *Database) UpsertInsider(companyID uint, insider types.Insider) (*types.Insider, error) {
	var existing types.Insider
	err := d.db.Where(types.Insider{CompanyID: companyID, Name: insider.Name}).
		Assign(types.Insider{
			CIK:        insider.CIK,
			IsDirector: insider.IsDirector,
			IsOfficer:  insider.IsOfficer,
			IsTenPct:   insider.IsTenPct,
			Title:      insider.Title,
		}).
		FirstOrCreate(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// IsFilingProcessed reports whether a filing was already fully ingested.
func (d *Database) IsFilingProcessed(accessionNo string) (bool, error) {
	var count int64
	err := d.db.Model(&types.ProcessedFiling{}).
		Where("accession_no = ?", accessionNo).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// findDuplicateTrade checks for an equivalent trade already on record, which
// happens when two scrape windows overlap the same filing period.
func findDuplicateTrade(tx *gorm.DB, trade *types.InsiderTrade) (bool, error) {
	var count int64
	err := tx.Model(&types.InsiderTrade{}).
		Where("insider_id = ? AND transaction_date = ? AND shares = ? AND transaction_type = ?",
			trade.InsiderID, trade.TransactionDate, trade.Shares, trade.TransactionType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CommitFiling persists a filing's trades and its processed marker in one
// transaction. Trades that duplicate an existing row are skipped. The marker
// insert ignores unique-index conflicts so concurrent scrapes of the same
// company converge on a single record. Returns the number of trades written.
func (d *Database) CommitFiling(trades []types.InsiderTrade, record *types.ProcessedFiling) (int, error) {
	created := 0

	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for i := range trades {
		dup, err := findDuplicateTrade(tx, &trades[i])
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if dup {
			continue
		}
		if err := tx.Create(&trades[i]).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
		created++
	}

	record.TradeCount = created
	record.ProcessedAt = time.Now()
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return created, nil
}

// GetTradesByCompany returns a company's trades, most recent first.
func (d *Database) GetTradesByCompany(companyID uint, limit int) ([]types.InsiderTrade, error) {
	var trades []types.InsiderTrade
	q := d.db.Where("company_id = ?", companyID).Order("transaction_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// GetProcessedFilings returns the processed-filing records for a ticker.
func (d *Database) GetProcessedFilings(ticker string, limit int) ([]types.ProcessedFiling, error) {
	var filings []types.ProcessedFiling
	q := d.db.Where("ticker = ?", ticker).Order("filing_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&filings).Error; err != nil {
		return nil, err
	}
	return filings, nil
}
