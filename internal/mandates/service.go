// Package mandates owns debit authorisations: registration with the partner
// exchange through the submission queue, status refresh, and cancellation.
package mandates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/cache"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/lifecycle"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/queue"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

var (
	ErrQueueUnavailable = errors.New("submission queue unavailable")
	ErrMandateNotFound  = errors.New("mandate not found")
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

type Service struct {
	db             *Database
	queue          queue.Queue
	credentials    *credentials.Service
	clients        map[types.Exchange]partner.Client
	cache          *cache.Invalidator
	enqueueTimeout time.Duration
	logger         zerolog.Logger
}

func NewService(gormDB *gorm.DB, q queue.Queue, creds *credentials.Service, clients map[types.Exchange]partner.Client, inv *cache.Invalidator) *Service {
	return &Service{
		db:             NewDatabase(gormDB),
		queue:          q,
		credentials:    creds,
		clients:        clients,
		cache:          inv,
		enqueueTimeout: 5 * time.Second,
		logger:         log.With().Str("component", "mandates").Logger(),
	}
}

func (s *Service) Database() *Database {
	return s.db
}

type RegisterParams struct {
	ClientID      string
	Exchange      types.Exchange
	MandateType   types.MandateType
	Amount        float64
	AccountNumber string
	IFSCCode      string
	BankName      string
	StartDate     string
	EndDate       string
}

// Register records the mandate as CREATED and queues partner registration.
func (s *Service) Register(ctx context.Context, advisorID string, params RegisterParams) (*types.Mandate, error) {
	if !params.Exchange.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown exchange %q", params.Exchange)}
	}
	req := partner.MandateRequest{
		Type:          params.MandateType,
		ClientCode:    params.ClientID,
		Amount:        params.Amount,
		AccountNumber: params.AccountNumber,
		IFSCCode:      params.IFSCCode,
		BankName:      params.BankName,
		StartDate:     params.StartDate,
		EndDate:       params.EndDate,
	}
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	mandate := &types.Mandate{
		MandateID:     uuid.New().String(),
		AdvisorID:     advisorID,
		ClientID:      params.ClientID,
		Exchange:      params.Exchange,
		MandateType:   params.MandateType,
		Status:        types.MandateCreated,
		Amount:        params.Amount,
		AccountNumber: params.AccountNumber,
		IFSCCode:      params.IFSCCode,
		BankName:      params.BankName,
		StartDate:     params.StartDate,
		EndDate:       params.EndDate,
	}
	if err := s.db.CreateMandate(mandate); err != nil {
		return nil, err
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()
	job := queue.Job{
		ID:         uuid.New().String(),
		Kind:       queue.KindMandateSubmit,
		EntityID:   mandate.MandateID,
		ActorID:    advisorID,
		Operation:  string(params.MandateType),
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(enqueueCtx, job); err != nil {
		s.logger.Error().Err(err).Str("mandate_id", mandate.MandateID).Msg("enqueue failed, rejecting mandate")
		if rejErr := s.db.RejectIfStillCreated(mandate.MandateID, "mandate queueing failed: "+err.Error()); rejErr != nil {
			s.logger.Error().Err(rejErr).Str("mandate_id", mandate.MandateID).Msg("failed to park mandate in REJECTED")
		}
		mandate.Status = types.MandateRejected
		return mandate, ErrQueueUnavailable
	}

	s.logger.Info().
		Str("mandate_id", mandate.MandateID).
		Str("advisor_id", advisorID).
		Str("exchange", string(params.Exchange)).
		Msg("mandate queued for registration")
	return mandate, nil
}

func (s *Service) Get(advisorID, mandateID string) (*types.Mandate, error) {
	mandate, err := s.db.GetMandateForAdvisor(mandateID, advisorID)
	if err != nil {
		return nil, err
	}
	if mandate == nil {
		return nil, ErrMandateNotFound
	}
	return mandate, nil
}

func (s *Service) List(advisorID, clientID string, status types.MandateStatus, page, limit int) ([]types.Mandate, int64, error) {
	return s.db.ListMandates(advisorID, clientID, status, page, limit)
}

// Refresh pulls the mandate's current status from the partner synchronously.
// Used when an advisor is waiting on a bank approval and cannot wait for the
// next poller cycle.
func (s *Service) Refresh(ctx context.Context, advisorID, mandateID string) (*types.Mandate, error) {
	mandate, err := s.Get(advisorID, mandateID)
	if err != nil {
		return nil, err
	}
	if mandate.ExternalMandateID == nil {
		return mandate, nil
	}

	creds, err := s.credentials.Decrypted(advisorID, mandate.Exchange)
	if err != nil {
		return nil, err
	}
	client, ok := s.clients[mandate.Exchange]
	if !ok {
		return nil, fmt.Errorf("no client configured for exchange %s", mandate.Exchange)
	}

	records, err := client.MandateStatuses(ctx, creds, []string{*mandate.ExternalMandateID})
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ExternalMandateID != *mandate.ExternalMandateID {
			continue
		}
		s.applyStatusRecord(ctx, mandate, rec)
	}
	return s.Get(advisorID, mandateID)
}

// ApplyStatusRecord maps one partner status row onto the local mandate. Used
// by both Refresh and the reconciliation poller.
func (s *Service) applyStatusRecord(ctx context.Context, mandate *types.Mandate, rec partner.MandateStatusRecord) {
	next := MapPartnerStatus(rec.Status)
	if next == "" || next == mandate.Status {
		return
	}
	applied, err := s.db.Transition(mandate.MandateID, next, func(m *types.Mandate) {
		if rec.UMRN != "" {
			m.UMRN = rec.UMRN
		}
		m.PartnerCode = rec.Status
	})
	if err != nil {
		s.logger.Error().Err(err).Str("mandate_id", mandate.MandateID).Msg("failed to apply mandate status")
		return
	}
	if applied {
		s.cache.InvalidateFor(ctx, mandate.AdvisorID, mandate.ClientID)
		s.logger.Info().
			Str("mandate_id", mandate.MandateID).
			Str("status", string(next)).
			Msg("mandate status updated from partner")
	}
}

// ApplyStatusRecord is the poller-facing wrapper around applyStatusRecord.
func (s *Service) ApplyStatusRecord(ctx context.Context, mandate *types.Mandate, rec partner.MandateStatusRecord) {
	s.applyStatusRecord(ctx, mandate, rec)
}

// Cancel revokes an APPROVED or SUBMITTED mandate with the partner.
func (s *Service) Cancel(ctx context.Context, advisorID, mandateID string) (*types.Mandate, error) {
	mandate, err := s.Get(advisorID, mandateID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanTransitionMandate(mandate.Status, types.MandateCancelled) {
		return nil, &ValidationError{Reason: fmt.Sprintf("mandate in status %s cannot be cancelled", mandate.Status)}
	}
	if mandate.ExternalMandateID == nil {
		return nil, &ValidationError{Reason: "mandate has no partner reference yet"}
	}

	creds, err := s.credentials.Decrypted(advisorID, mandate.Exchange)
	if err != nil {
		return nil, err
	}
	client, ok := s.clients[mandate.Exchange]
	if !ok {
		return nil, fmt.Errorf("no client configured for exchange %s", mandate.Exchange)
	}

	// Mandate cancellation rides the order cancellation API on both
	// exchanges, with the mandate reference as the external ID.
	result, err := client.CancelOrder(ctx, creds, types.OrderSIP, *mandate.ExternalMandateID)
	if err != nil {
		return nil, err
	}
	if perr := partner.ErrorFromResult(*result); perr != nil {
		return nil, perr
	}

	if _, err := s.db.Transition(mandateID, types.MandateCancelled, func(m *types.Mandate) {
		m.PartnerCode = result.Status
		m.PartnerMessage = result.Message
	}); err != nil {
		return nil, err
	}
	s.cache.InvalidateFor(ctx, advisorID, mandate.ClientID)

	return s.Get(advisorID, mandateID)
}

// MapPartnerStatus translates partner mandate status tokens into local
// statuses. Unknown tokens map to "" and are ignored by callers.
func MapPartnerStatus(status string) types.MandateStatus {
	switch normalize(status) {
	case "APPROVED", "ACTIVE", "REGISTERED", "AUTH_SUCCESS":
		return types.MandateApproved
	case "REJECTED", "AUTH_FAILED", "REG_FAILED":
		return types.MandateRejected
	case "CANCELLED":
		return types.MandateCancelled
	case "EXPIRED":
		return types.MandateExpired
	case "SUBMITTED", "PENDING", "UNDER_PROCESSING":
		return types.MandateSubmitted
	default:
		return ""
	}
}

func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}
