// Package orders is the intake and lifecycle owner for exchange orders.
// Placement persists a QUEUED row and enqueues a submission job; the worker
// pool does the actual partner call so the API responds immediately.
package orders

import (
	"context"
	"errors"
	"fmt"
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

// EnqueueTimeout bounds how long intake waits for the queue before declaring
// the submission path unavailable.
const EnqueueTimeout = 5 * time.Second

// ErrQueueUnavailable means the order was recorded but could not be handed to
// the submission queue; the order is already parked in FAILED.
var ErrQueueUnavailable = errors.New("submission queue unavailable")

// ErrOrderNotFound is returned for unknown or retired orders.
var ErrOrderNotFound = errors.New("order not found")

// ValidationError marks a request the advisor can fix.
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
		enqueueTimeout: EnqueueTimeout,
		logger:         log.With().Str("component", "orders").Logger(),
	}
}

// Database exposes the persistence layer for the processor and pollers.
func (s *Service) Database() *Database {
	return s.db
}

// PlaceParams is the validated intake shape shared by all order endpoints.
type PlaceParams struct {
	ClientID         string
	Exchange         types.Exchange
	OrderType        types.OrderType
	SchemeCode       string
	SchemeName       string
	TargetSchemeCode string
	Amount           *float64
	Units            *float64
	FolioNumber      string
	Frequency        string
	Installments     int
	StartDate        string
	MandateRef       string
}

func (p PlaceParams) toPartnerRequest() partner.OrderRequest {
	return partner.OrderRequest{
		Operation:        p.OrderType,
		ClientCode:       p.ClientID,
		SchemeCode:       p.SchemeCode,
		TargetSchemeCode: p.TargetSchemeCode,
		Amount:           p.Amount,
		Units:            p.Units,
		FolioNumber:      p.FolioNumber,
		Frequency:        p.Frequency,
		Installments:     p.Installments,
		StartDate:        p.StartDate,
		MandateRef:       p.MandateRef,
	}
}

// Place records the order and hands it to the submission queue. The returned
// order is always persisted; on ErrQueueUnavailable its status is FAILED.
func (s *Service) Place(ctx context.Context, advisorID string, params PlaceParams) (*types.Order, error) {
	if !params.Exchange.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown exchange %q", params.Exchange)}
	}
	if params.ClientID == "" {
		return nil, &ValidationError{Reason: "client_id is required"}
	}
	if err := params.toPartnerRequest().Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	order := &types.Order{
		OrderID:          uuid.New().String(),
		AdvisorID:        advisorID,
		ClientID:         params.ClientID,
		Exchange:         params.Exchange,
		OrderType:        params.OrderType,
		Status:           types.OrderQueued,
		SchemeCode:       params.SchemeCode,
		SchemeName:       params.SchemeName,
		TargetSchemeCode: params.TargetSchemeCode,
		Amount:           params.Amount,
		Units:            params.Units,
		FolioNumber:      params.FolioNumber,
		Frequency:        params.Frequency,
		Installments:     params.Installments,
		StartDate:        params.StartDate,
		MandateRef:       params.MandateRef,
	}
	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()
	job := queue.Job{
		ID:         uuid.New().String(),
		Kind:       queue.KindOrderSubmit,
		EntityID:   order.OrderID,
		ActorID:    advisorID,
		Operation:  string(params.OrderType),
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(enqueueCtx, job); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("enqueue failed, failing order")
		if failErr := s.db.FailIfStillQueued(order.OrderID, "order queueing failed: "+err.Error()); failErr != nil {
			s.logger.Error().Err(failErr).Str("order_id", order.OrderID).Msg("failed to park order in FAILED")
		}
		order.Status = types.OrderFailed
		return order, ErrQueueUnavailable
	}

	s.logger.Info().
		Str("order_id", order.OrderID).
		Str("advisor_id", advisorID).
		Str("exchange", string(params.Exchange)).
		Str("order_type", string(params.OrderType)).
		Msg("order queued for submission")
	return order, nil
}

func (s *Service) Get(advisorID, orderID string) (*types.Order, error) {
	order, err := s.db.GetOrderForAdvisor(orderID, advisorID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) List(advisorID string, filter ListFilter) ([]types.Order, int64, error) {
	return s.db.ListOrders(advisorID, filter)
}

// Cancel asks the partner to cancel an order synchronously, then transitions
// the local row on success.
func (s *Service) Cancel(ctx context.Context, advisorID, orderID string) (*types.Order, error) {
	order, err := s.Get(advisorID, orderID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanTransitionOrder(order.Status, types.OrderCancelled) {
		return nil, &ValidationError{Reason: fmt.Sprintf("order in status %s cannot be cancelled", order.Status)}
	}
	if order.ExternalOrderID == nil {
		return nil, &ValidationError{Reason: "order has no partner reference yet"}
	}

	creds, err := s.credentials.Decrypted(advisorID, order.Exchange)
	if err != nil {
		return nil, err
	}
	client, ok := s.clients[order.Exchange]
	if !ok {
		return nil, fmt.Errorf("no client configured for exchange %s", order.Exchange)
	}

	result, err := client.CancelOrder(ctx, creds, order.OrderType, *order.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	if perr := partner.ErrorFromResult(*result); perr != nil {
		return nil, perr
	}

	if _, err := s.db.Transition(orderID, types.OrderCancelled, func(o *types.Order) {
		o.PartnerCode = result.Status
		o.PartnerMessage = result.Message
	}); err != nil {
		return nil, err
	}
	s.cache.InvalidateFor(ctx, advisorID, order.ClientID)

	return s.Get(advisorID, orderID)
}
