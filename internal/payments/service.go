// Package payments funds submitted orders. Unlike order submission, payment
// initiation is synchronous: the partner answers with a payment reference (or
// a rejection) in the same call, so there is no queue hop.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/orders"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// ErrPaymentNotFound is returned when an order has no payment attempts.
var ErrPaymentNotFound = errors.New("payment not found")

// ValidationError marks a request the advisor can fix.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

type Service struct {
	db          *Database
	orders      *orders.Database
	credentials *credentials.Service
	clients     map[types.Exchange]partner.Client
	logger      zerolog.Logger
}

func NewService(gormDB *gorm.DB, ordersDB *orders.Database, creds *credentials.Service, clients map[types.Exchange]partner.Client) *Service {
	return &Service{
		db:          NewDatabase(gormDB),
		orders:      ordersDB,
		credentials: creds,
		clients:     clients,
		logger:      log.With().Str("component", "payments").Logger(),
	}
}

// InitiateParams is the intake shape for a payment. MandateRef falls back to
// the order's mandate reference when not given.
type InitiateParams struct {
	Mode         types.PaymentMode
	BankCode     string
	VPA          string
	UTRNumber    string
	ChequeNumber string
	ChequeDate   string
	MandateRef   string
}

// Initiate records a payment against a submitted order and asks the partner
// to collect it. The payment row is always persisted; on partner rejection it
// is parked in FAILED and the rejection is returned to the caller.
func (s *Service) Initiate(ctx context.Context, advisorID, orderID string, params InitiateParams) (*types.Payment, error) {
	order, err := s.orders.GetOrderForAdvisor(orderID, advisorID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orders.ErrOrderNotFound
	}
	if order.ExternalOrderID == nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("order in status %s has no partner reference to pay against", order.Status)}
	}

	mandateRef := params.MandateRef
	if mandateRef == "" {
		mandateRef = order.MandateRef
	}
	req := partner.PaymentRequest{
		Mode:            params.Mode,
		ClientCode:      order.ClientID,
		ExternalOrderID: *order.ExternalOrderID,
		Amount:          order.Amount,
		BankCode:        params.BankCode,
		VPA:             params.VPA,
		UTRNumber:       params.UTRNumber,
		ChequeNumber:    params.ChequeNumber,
		ChequeDate:      params.ChequeDate,
		MandateRef:      mandateRef,
	}
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	creds, err := s.credentials.Decrypted(advisorID, order.Exchange)
	if err != nil {
		return nil, err
	}
	client, ok := s.clients[order.Exchange]
	if !ok {
		return nil, fmt.Errorf("no client configured for exchange %s", order.Exchange)
	}

	payment := &types.Payment{
		PaymentID:    uuid.New().String(),
		OrderID:      order.OrderID,
		AdvisorID:    advisorID,
		ClientID:     order.ClientID,
		Exchange:     order.Exchange,
		Mode:         params.Mode,
		Status:       types.PaymentInitiated,
		Amount:       order.Amount,
		BankCode:     params.BankCode,
		VPA:          params.VPA,
		UTRNumber:    params.UTRNumber,
		ChequeNumber: params.ChequeNumber,
		ChequeDate:   params.ChequeDate,
		MandateRef:   mandateRef,
	}
	if err := s.db.CreatePayment(payment); err != nil {
		return nil, err
	}

	ack, err := client.InitiatePayment(ctx, creds, req)
	if err != nil {
		s.settle(payment, types.PaymentFailed, "", "", err.Error())
		return payment, err
	}
	if perr := partner.ErrorFromResult(ack.Result); perr != nil {
		s.logger.Warn().
			Str("payment_id", payment.PaymentID).
			Str("order_id", order.OrderID).
			Str("code", ack.Result.Status).
			Msg("payment rejected by partner")
		s.settle(payment, types.PaymentFailed, "", ack.Result.Status, ack.Result.Message)
		return payment, perr
	}

	s.settle(payment, types.PaymentPending, ack.TransactionRef, ack.Result.Status, ack.Result.Message)
	s.logger.Info().
		Str("payment_id", payment.PaymentID).
		Str("order_id", order.OrderID).
		Str("transaction_ref", ack.TransactionRef).
		Msg("payment initiated with partner")
	return payment, nil
}

// Status returns the latest payment attempt for an order.
func (s *Service) Status(advisorID, orderID string) (*types.Payment, error) {
	order, err := s.orders.GetOrderForAdvisor(orderID, advisorID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orders.ErrOrderNotFound
	}
	payment, err := s.db.LatestForOrder(orderID, advisorID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) settle(payment *types.Payment, to types.PaymentStatus, transactionRef, code, message string) {
	if err := s.db.Settle(payment.PaymentID, to, transactionRef, code, message); err != nil {
		s.logger.Error().Err(err).Str("payment_id", payment.PaymentID).Msg("failed to settle payment row")
		return
	}
	payment.Status = to
	payment.TransactionRef = transactionRef
	payment.PartnerCode = code
	payment.PartnerMessage = message
}
