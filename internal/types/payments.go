package types

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMode is how the investor funds a submitted order.
type PaymentMode string

const (
	PaymentUPI        PaymentMode = "UPI"
	PaymentNetbanking PaymentMode = "NETBANKING"
	PaymentMandate    PaymentMode = "MANDATE"
	PaymentRTGS       PaymentMode = "RTGS"
	PaymentNEFT       PaymentMode = "NEFT"
	PaymentCheque     PaymentMode = "CHEQUE"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentUPI, PaymentNetbanking, PaymentMandate, PaymentRTGS, PaymentNEFT, PaymentCheque:
		return true
	}
	return false
}

type PaymentStatus string

// A payment is INITIATED while the partner call is in flight, PENDING once
// the partner has accepted it (settlement is asynchronous on their side),
// and FAILED when the call or the partner rejected it.
const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentFailed    PaymentStatus = "FAILED"
)

type Payment struct {
	gorm.Model     `json:"-"`
	PaymentID      string        `gorm:"uniqueIndex" json:"payment_id"`
	OrderID        string        `gorm:"index" json:"order_id"`
	AdvisorID      string        `gorm:"index" json:"advisor_id"`
	ClientID       string        `json:"client_id"`
	Exchange       Exchange      `json:"exchange"`
	Mode           PaymentMode   `json:"mode"`
	Status         PaymentStatus `gorm:"index" json:"status"`
	Amount         *float64      `json:"amount,omitempty"`
	BankCode       string        `json:"bank_code,omitempty"`
	VPA            string        `json:"vpa,omitempty"`
	UTRNumber      string        `json:"utr_number,omitempty"`
	ChequeNumber   string        `json:"cheque_number,omitempty"`
	ChequeDate     string        `json:"cheque_date,omitempty"`
	MandateRef     string        `json:"mandate_ref,omitempty"`
	TransactionRef string        `json:"transaction_ref,omitempty"`
	PartnerCode    string        `json:"partner_code,omitempty"`
	PartnerMessage string        `json:"partner_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
