package database

import (
	"fmt"

	"github.com/ksred/insider-api/internal/database/migrations"
	"github.com/ksred/insider-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes a GORM connection to the sqlite database at path
// and applies the schema.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.Company{},
		&types.Insider{},
		&types.InsiderTrade{},
		&types.ProcessedFiling{},
	)
	if err != nil {
		return nil, err
	}

	if err := migrations.AddTradeQueryIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
