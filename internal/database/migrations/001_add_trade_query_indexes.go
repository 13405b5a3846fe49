package migrations

import (
	"gorm.io/gorm"
)

// AddTradeQueryIndexes creates the indexes the pipeline's dedup checks and
// the read API lean on.
func AddTradeQueryIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Duplicate-trade gate: overlapping scrape windows re-discover the
		// same transactions and must find them cheaply
		`CREATE INDEX IF NOT EXISTS idx_insider_trades_dedup
		 ON insider_trades(insider_id, transaction_date, shares, transaction_type)`,

		// Company trade listings, newest first
		`CREATE INDEX IF NOT EXISTS idx_insider_trades_company_date
		 ON insider_trades(company_id, transaction_date)`,

		// Transaction type filtering (BUY/SELL screens)
		`CREATE INDEX IF NOT EXISTS idx_insider_trades_type
		 ON insider_trades(transaction_type)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
