package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/audit"
	"github.com/wealthdesk/exchange-gateway/internal/batch"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/database/migrations"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddPollingIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Order{},
		&types.Payment{},
		&types.Mandate{},
		&credentials.Credential{},
		&audit.Record{},
		&batch.RunLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
