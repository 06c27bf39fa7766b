package mandates

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/lifecycle"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateMandate(mandate *types.Mandate) error {
	return d.db.Create(mandate).Error
}

func (d *Database) GetMandate(mandateID string) (*types.Mandate, error) {
	var mandate types.Mandate
	err := d.db.Where("mandate_id = ? AND retired = ?", mandateID, false).First(&mandate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mandate, nil
}

func (d *Database) GetMandateForAdvisor(mandateID, advisorID string) (*types.Mandate, error) {
	var mandate types.Mandate
	err := d.db.Where("mandate_id = ? AND advisor_id = ? AND retired = ?", mandateID, advisorID, false).First(&mandate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mandate, nil
}

func (d *Database) ListMandates(advisorID string, clientID string, status types.MandateStatus, page, limit int) ([]types.Mandate, int64, error) {
	query := d.db.Model(&types.Mandate{}).Where("advisor_id = ? AND retired = ?", advisorID, false)
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var mandates []types.Mandate
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&mandates).Error
	return mandates, total, err
}

// PendingForExchange returns mandates awaiting a partner-side decision,
// oldest update first.
func (d *Database) PendingForExchange(exchange types.Exchange, limit int) ([]types.Mandate, error) {
	var mandates []types.Mandate
	err := d.db.Where("exchange = ? AND status IN ? AND external_mandate_id IS NOT NULL AND retired = ?",
		exchange, lifecycle.PollableMandateStatuses(), false).
		Order("updated_at ASC").
		Limit(limit).
		Find(&mandates).Error
	return mandates, err
}

// Transition moves a mandate to a new status inside a transaction. Illegal
// transitions are logged no-ops.
func (d *Database) Transition(mandateID string, to types.MandateStatus, mutate func(*types.Mandate)) (bool, error) {
	applied := false
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var mandate types.Mandate
		if err := tx.Where("mandate_id = ? AND retired = ?", mandateID, false).First(&mandate).Error; err != nil {
			return err
		}
		if !lifecycle.CanTransitionMandate(mandate.Status, to) {
			log.Warn().
				Str("mandate_id", mandateID).
				Str("from", string(mandate.Status)).
				Str("to", string(to)).
				Msg("illegal mandate transition ignored")
			return nil
		}
		if mutate != nil {
			mutate(&mandate)
		}
		mandate.Status = to
		if err := tx.Save(&mandate).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// RejectIfStillCreated parks a mandate in REJECTED only when registration has
// not already gone through.
func (d *Database) RejectIfStillCreated(mandateID, message string) error {
	return d.db.Model(&types.Mandate{}).
		Where("mandate_id = ? AND status = ?", mandateID, types.MandateCreated).
		Updates(map[string]any{"status": types.MandateRejected, "partner_message": message}).Error
}
