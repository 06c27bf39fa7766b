package types

import (
	"time"

	"gorm.io/gorm"
)

// Exchange identifies a partner trading exchange.
type Exchange string

const (
	ExchangeA Exchange = "EXCHANGE_A"
	ExchangeB Exchange = "EXCHANGE_B"
)

func (e Exchange) Valid() bool {
	return e == ExchangeA || e == ExchangeB
}

type OrderType string

const (
	OrderPurchase   OrderType = "PURCHASE"
	OrderRedemption OrderType = "REDEMPTION"
	OrderSwitch     OrderType = "SWITCH"
	OrderSIP        OrderType = "SIP"
	OrderXSIP       OrderType = "XSIP"
	OrderSTP        OrderType = "STP"
	OrderSWP        OrderType = "SWP"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderPurchase, OrderRedemption, OrderSwitch, OrderSIP, OrderXSIP, OrderSTP, OrderSWP:
		return true
	}
	return false
}

// Systematic reports whether the order type is a recurring plan registration
// rather than a one-off transaction.
func (t OrderType) Systematic() bool {
	switch t {
	case OrderSIP, OrderXSIP, OrderSTP, OrderSWP:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderQueued    OrderStatus = "QUEUED"
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderFailed    OrderStatus = "FAILED"
	OrderAllotted  OrderStatus = "ALLOTTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	gorm.Model       `json:"-"`
	OrderID          string      `gorm:"uniqueIndex" json:"order_id"`
	AdvisorID        string      `gorm:"index" json:"advisor_id"`
	ClientID         string      `gorm:"index" json:"client_id"`
	Exchange         Exchange    `gorm:"index" json:"exchange"`
	OrderType        OrderType   `json:"order_type"`
	Status           OrderStatus `gorm:"index" json:"status"`
	SchemeCode       string      `json:"scheme_code"`
	SchemeName       string      `json:"scheme_name,omitempty"`
	TargetSchemeCode string      `json:"target_scheme_code,omitempty"` // SWITCH/STP destination
	Amount           *float64    `json:"amount,omitempty"`
	Units            *float64    `json:"units,omitempty"`
	FolioNumber      string      `json:"folio_number,omitempty"`
	Frequency        string      `json:"frequency,omitempty"`
	Installments     int         `json:"installments,omitempty"`
	StartDate        string      `json:"start_date,omitempty"`
	MandateRef       string      `json:"mandate_ref,omitempty"`
	ExternalOrderID  *string     `gorm:"index" json:"external_order_id,omitempty"`
	PartnerCode      string      `json:"partner_code,omitempty"`
	PartnerMessage   string      `json:"partner_message,omitempty"`
	AllottedUnits    *float64    `json:"allotted_units,omitempty"`
	AllottedNAV      *float64    `json:"allotted_nav,omitempty"`
	AllottedAmount   *float64    `json:"allotted_amount,omitempty"`
	SubmittedAt      *time.Time  `json:"submitted_at,omitempty"`
	AllottedAt       *time.Time  `json:"allotted_at,omitempty"`
	Retired          bool        `gorm:"index" json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
