package orders

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

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	err := d.db.Where("order_id = ? AND retired = ?", orderID, false).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderForAdvisor(orderID, advisorID string) (*types.Order, error) {
	var order types.Order
	err := d.db.Where("order_id = ? AND advisor_id = ? AND retired = ?", orderID, advisorID, false).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListFilter narrows ListOrders. Zero fields are ignored.
type ListFilter struct {
	ClientID  string
	Exchange  types.Exchange
	Status    types.OrderStatus
	OrderType types.OrderType
	Page      int
	Limit     int
}

func (d *Database) ListOrders(advisorID string, filter ListFilter) ([]types.Order, int64, error) {
	query := d.db.Model(&types.Order{}).Where("advisor_id = ? AND retired = ?", advisorID, false)
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Exchange != "" {
		query = query.Where("exchange = ?", filter.Exchange)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderType != "" {
		query = query.Where("order_type = ?", filter.OrderType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var orders []types.Order
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// PendingForExchange returns submitted-but-unsettled orders for the
// reconciliation poller, oldest update first so no order starves.
func (d *Database) PendingForExchange(exchange types.Exchange, limit int) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("exchange = ? AND status IN ? AND external_order_id IS NOT NULL AND retired = ?",
		exchange, lifecycle.PollableOrderStatuses(), false).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// Transition moves an order to a new status inside a transaction, applying
// mutate to the row first. An illegal transition is a logged no-op and
// returns applied=false with a nil error.
func (d *Database) Transition(orderID string, to types.OrderStatus, mutate func(*types.Order)) (bool, error) {
	applied := false
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var order types.Order
		if err := tx.Where("order_id = ? AND retired = ?", orderID, false).First(&order).Error; err != nil {
			return err
		}
		if !lifecycle.CanTransitionOrder(order.Status, to) {
			log.Warn().
				Str("order_id", orderID).
				Str("from", string(order.Status)).
				Str("to", string(to)).
				Msg("illegal order transition ignored")
			return nil
		}
		if mutate != nil {
			mutate(&order)
		}
		order.Status = to
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// FailIfStillQueued parks an order in FAILED only when it has not moved past
// QUEUED. The guard keeps a late worker or exhausted retry from clobbering a
// submission that already went through.
func (d *Database) FailIfStillQueued(orderID, message string) error {
	return d.db.Model(&types.Order{}).
		Where("order_id = ? AND status = ?", orderID, types.OrderQueued).
		Updates(map[string]any{"status": types.OrderFailed, "partner_message": message}).Error
}

// CountByStatus feeds the order status gauge.
func (d *Database) CountByStatus() (map[types.OrderStatus]int64, error) {
	type row struct {
		Status types.OrderStatus
		N      int64
	}
	var rows []row
	err := d.db.Model(&types.Order{}).
		Select("status, COUNT(*) as n").
		Where("retired = ?", false).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[types.OrderStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
