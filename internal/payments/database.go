package payments

import (
	"errors"

	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreatePayment(payment *types.Payment) error {
	return d.db.Create(payment).Error
}

// LatestForOrder returns the most recent payment attempt against an order,
// scoped to the advisor who owns it.
func (d *Database) LatestForOrder(orderID, advisorID string) (*types.Payment, error) {
	var payment types.Payment
	err := d.db.Where("order_id = ? AND advisor_id = ?", orderID, advisorID).
		Order("id DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// Settle records the outcome of the partner call on an INITIATED payment.
// The status guard keeps a duplicate settle from rewriting history.
func (d *Database) Settle(paymentID string, to types.PaymentStatus, transactionRef, code, message string) error {
	return d.db.Model(&types.Payment{}).
		Where("payment_id = ? AND status = ?", paymentID, types.PaymentInitiated).
		Updates(map[string]any{
			"status":          to,
			"transaction_ref": transactionRef,
			"partner_code":    code,
			"partner_message": message,
		}).Error
}
