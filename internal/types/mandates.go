package types

import (
	"time"

	"gorm.io/gorm"
)

type MandateType string

const (
	MandateENach    MandateType = "E_NACH"
	MandatePhysical MandateType = "PHYSICAL"
)

func (t MandateType) Valid() bool {
	return t == MandateENach || t == MandatePhysical
}

type MandateStatus string

const (
	MandateCreated   MandateStatus = "CREATED"
	MandateSubmitted MandateStatus = "SUBMITTED"
	MandateApproved  MandateStatus = "APPROVED"
	MandateRejected  MandateStatus = "REJECTED"
	MandateCancelled MandateStatus = "CANCELLED"
	MandateExpired   MandateStatus = "EXPIRED"
)

// Mandate is a debit authorisation registered with a partner exchange. It
// backs systematic orders that reference it through MandateRef.
type Mandate struct {
	gorm.Model        `json:"-"`
	MandateID         string        `gorm:"uniqueIndex" json:"mandate_id"`
	AdvisorID         string        `gorm:"index" json:"advisor_id"`
	ClientID          string        `gorm:"index" json:"client_id"`
	Exchange          Exchange      `gorm:"index" json:"exchange"`
	MandateType       MandateType   `json:"mandate_type"`
	Status            MandateStatus `gorm:"index" json:"status"`
	Amount            float64       `json:"amount"`
	AccountNumber     string        `json:"account_number"`
	IFSCCode          string        `json:"ifsc_code"`
	BankName          string        `json:"bank_name,omitempty"`
	StartDate         string        `json:"start_date,omitempty"`
	EndDate           string        `json:"end_date,omitempty"`
	ExternalMandateID *string       `gorm:"index" json:"external_mandate_id,omitempty"`
	UMRN              string        `json:"umrn,omitempty"`
	AuthURL           string        `json:"auth_url,omitempty"`
	PartnerCode       string        `json:"partner_code,omitempty"`
	PartnerMessage    string        `json:"partner_message,omitempty"`
	SubmittedAt       *time.Time    `json:"submitted_at,omitempty"`
	Retired           bool          `gorm:"index" json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
