// Package partner contains the shared plumbing for talking to the two
// exchange back ends: a resilient HTTP transport (circuit breaker, bounded
// retry, per-call timeout, redacted audit) plus the request/response types
// and error taxonomy the exchange clients share.
package partner

import (
	"context"
	"fmt"

	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// Credentials are an advisor's decrypted secrets for one exchange. AdvisorID
// identifies the owner so calls made with them can be attributed in the
// audit trail.
type Credentials struct {
	AdvisorID  string
	MemberID   string
	LoginID    string
	Secret     string
	LicenseKey string
}

// OrderRequest carries everything an exchange client needs to place an order.
type OrderRequest struct {
	Operation        types.OrderType
	ClientCode       string
	SchemeCode       string
	TargetSchemeCode string
	Amount           *float64
	Units            *float64
	FolioNumber      string
	Frequency        string
	Installments     int
	StartDate        string
	MandateRef       string
}

func (r OrderRequest) Validate() error {
	if !r.Operation.Valid() {
		return fmt.Errorf("unsupported order type %q", r.Operation)
	}
	if r.ClientCode == "" {
		return fmt.Errorf("client code is required")
	}
	if r.SchemeCode == "" {
		return fmt.Errorf("scheme code is required")
	}
	switch r.Operation {
	case types.OrderPurchase:
		if r.Amount == nil || *r.Amount <= 0 {
			return fmt.Errorf("purchase requires a positive amount")
		}
	case types.OrderRedemption:
		if (r.Amount == nil || *r.Amount <= 0) && (r.Units == nil || *r.Units <= 0) {
			return fmt.Errorf("redemption requires a positive amount or units")
		}
	case types.OrderSwitch:
		if r.TargetSchemeCode == "" {
			return fmt.Errorf("switch requires a target scheme code")
		}
	default: // systematic plans
		if r.Amount == nil || *r.Amount <= 0 {
			return fmt.Errorf("%s requires a positive amount", r.Operation)
		}
		if r.Frequency == "" || r.Installments <= 0 || r.StartDate == "" {
			return fmt.Errorf("%s requires frequency, installments and start date", r.Operation)
		}
		if r.Operation != types.OrderSWP && r.MandateRef == "" {
			return fmt.Errorf("%s requires a mandate reference", r.Operation)
		}
	}
	return nil
}

// OrderAck is the exchange's synchronous acknowledgement of a submission.
type OrderAck struct {
	ExternalOrderID string
	Result          Result
}

// OrderStatusRecord is one row from a partner order status report.
type OrderStatusRecord struct {
	ExternalOrderID string
	Status          string
	AllottedUnits   *float64
	AllottedNAV     *float64
	AllottedAmount  *float64
}

type MandateRequest struct {
	Type          types.MandateType
	ClientCode    string
	Amount        float64
	AccountNumber string
	IFSCCode      string
	BankName      string
	StartDate     string
	EndDate       string
}

func (r MandateRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("unsupported mandate type %q", r.Type)
	}
	if r.ClientCode == "" {
		return fmt.Errorf("client code is required")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("mandate requires a positive amount")
	}
	if r.AccountNumber == "" || r.IFSCCode == "" {
		return fmt.Errorf("mandate requires bank account number and IFSC code")
	}
	return nil
}

// PaymentRequest funds an order that already has a partner reference. Only
// the fields for the chosen mode need to be set.
type PaymentRequest struct {
	Mode            types.PaymentMode
	ClientCode      string
	ExternalOrderID string
	Amount          *float64
	BankCode        string
	VPA             string
	UTRNumber       string
	ChequeNumber    string
	ChequeDate      string
	MandateRef      string
}

func (r PaymentRequest) Validate() error {
	if !r.Mode.Valid() {
		return fmt.Errorf("unsupported payment mode %q", r.Mode)
	}
	if r.ClientCode == "" {
		return fmt.Errorf("client code is required")
	}
	if r.ExternalOrderID == "" {
		return fmt.Errorf("payment requires the partner's order reference")
	}
	switch r.Mode {
	case types.PaymentUPI:
		if r.VPA == "" {
			return fmt.Errorf("UPI payment requires a VPA")
		}
	case types.PaymentNetbanking:
		if r.BankCode == "" {
			return fmt.Errorf("netbanking payment requires a bank code")
		}
	case types.PaymentMandate:
		if r.MandateRef == "" {
			return fmt.Errorf("mandate payment requires a mandate reference")
		}
	case types.PaymentRTGS, types.PaymentNEFT:
		if r.UTRNumber == "" {
			return fmt.Errorf("%s payment requires a UTR number", r.Mode)
		}
	case types.PaymentCheque:
		if r.ChequeNumber == "" || r.ChequeDate == "" {
			return fmt.Errorf("cheque payment requires cheque number and date")
		}
	}
	return nil
}

// PaymentAck is the exchange's synchronous acknowledgement of a payment
// initiation. TransactionRef is the partner's payment reference; settlement
// itself completes asynchronously on the partner side.
type PaymentAck struct {
	TransactionRef string
	Result         Result
}

type MandateAck struct {
	ExternalMandateID string
	AuthURL           string
	Result            Result
}

type MandateStatusRecord struct {
	ExternalMandateID string
	Status            string
	UMRN              string
}

// Client is implemented once per exchange. Transport-level failures come back
// as errors; business rejections come back inside the ack's Result so the
// caller can decide whether they are final.
type Client interface {
	Exchange() types.Exchange
	SubmitOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderAck, error)
	CancelOrder(ctx context.Context, creds Credentials, operation types.OrderType, externalOrderID string) (*Result, error)
	OrderStatuses(ctx context.Context, creds Credentials, externalOrderIDs []string) ([]OrderStatusRecord, error)
	InitiatePayment(ctx context.Context, creds Credentials, req PaymentRequest) (*PaymentAck, error)
	RegisterMandate(ctx context.Context, creds Credentials, req MandateRequest) (*MandateAck, error)
	MandateStatuses(ctx context.Context, creds Credentials, externalMandateIDs []string) ([]MandateStatusRecord, error)
	Ping(ctx context.Context, creds Credentials) error
}
