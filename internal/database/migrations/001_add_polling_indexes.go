package migrations

import (
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// AddPollingIndexes creates the order and mandate tables and the composite
// indexes the reconciliation pollers query on.
func AddPollingIndexes(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Order{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&types.Mandate{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for the poller's pending-orders scan
		`CREATE INDEX IF NOT EXISTS idx_orders_exchange_status
		 ON orders(exchange, status)`,

		// Composite index for the poller's pending-mandates scan
		`CREATE INDEX IF NOT EXISTS idx_mandates_exchange_status
		 ON mandates(exchange, status)`,

		// Index for updated_at ordering (pollers pick oldest first)
		`CREATE INDEX IF NOT EXISTS idx_orders_updated_at
		 ON orders(updated_at)`,

		`CREATE INDEX IF NOT EXISTS idx_mandates_updated_at
		 ON mandates(updated_at)`,

		// Composite index for advisor-scoped listings
		`CREATE INDEX IF NOT EXISTS idx_orders_advisor_client
		 ON orders(advisor_id, client_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
