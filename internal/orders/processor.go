package orders

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/queue"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/internal/vault"
)

// Processor consumes order submission jobs from the worker pool. Handle is
// idempotent: a job whose order already left QUEUED is acknowledged without
// effect, which makes the queue's at-least-once delivery safe.
type Processor struct {
	service *Service
	logger  zerolog.Logger
}

func NewProcessor(service *Service) *Processor {
	return &Processor{
		service: service,
		logger:  log.With().Str("component", "order_processor").Logger(),
	}
}

// Handle submits one queued order to its exchange. A returned error means
// "retry me"; permanent failures park the order in FAILED and return nil.
func (p *Processor) Handle(ctx context.Context, job queue.Job) error {
	order, err := p.service.db.GetOrder(job.EntityID)
	if err != nil {
		return err
	}
	if order == nil {
		p.logger.Warn().Str("order_id", job.EntityID).Msg("submission job for unknown order, dropping")
		return nil
	}
	if order.Status != types.OrderQueued {
		p.logger.Info().
			Str("order_id", order.OrderID).
			Str("status", string(order.Status)).
			Msg("order already past QUEUED, skipping duplicate submission")
		return nil
	}

	creds, err := p.service.credentials.Decrypted(order.AdvisorID, order.Exchange)
	if err != nil {
		// Missing, deactivated or undecryptable credentials never heal on
		// retry; resubmitting would only burn attempts.
		if errors.Is(err, vault.ErrDecryption) {
			p.logger.Error().Str("order_id", order.OrderID).Msg("credential decryption failed, order will not be retried")
		}
		p.fail(order, "credential error: "+err.Error())
		return nil
	}

	client, ok := p.service.clients[order.Exchange]
	if !ok {
		p.fail(order, "no client configured for exchange "+string(order.Exchange))
		return nil
	}

	ack, err := client.SubmitOrder(ctx, creds, p.buildRequest(order))
	if err != nil {
		if errors.Is(err, partner.ErrCircuitOpen) || partner.IsTransient(err) {
			return err
		}
		p.fail(order, err.Error())
		return nil
	}

	if perr := partner.ErrorFromResult(ack.Result); perr != nil {
		var pe *partner.Error
		if errors.As(perr, &pe) && pe.Retryable() {
			return perr
		}
		p.logger.Warn().
			Str("order_id", order.OrderID).
			Str("code", ack.Result.Status).
			Msg("order rejected by partner")
		p.failWithResult(order, ack.Result)
		return nil
	}

	// A successful ack without the partner's order number is unusable: the
	// reconciliation poller can only find orders by that reference, so the
	// order would sit in SUBMITTED forever.
	if ack.ExternalOrderID == "" {
		p.logger.Error().
			Str("order_id", order.OrderID).
			Str("code", ack.Result.Status).
			Msg("partner ack carried no order reference")
		p.failWithResult(order, partner.Result{
			Status:  ack.Result.Status,
			Message: "partner accepted the order without returning an order reference",
		})
		return nil
	}

	now := time.Now()
	applied, err := p.service.db.Transition(order.OrderID, types.OrderSubmitted, func(o *types.Order) {
		id := ack.ExternalOrderID
		o.ExternalOrderID = &id
		o.PartnerCode = ack.Result.Status
		o.PartnerMessage = ack.Result.Message
		o.SubmittedAt = &now
	})
	if err != nil {
		return err
	}
	if applied {
		p.service.cache.InvalidateFor(ctx, order.AdvisorID, order.ClientID)
		p.logger.Info().
			Str("order_id", order.OrderID).
			Str("external_order_id", ack.ExternalOrderID).
			Msg("order submitted to partner")
	}
	return nil
}

// HandleExhausted parks an order after the pool has given up on its job.
func (p *Processor) HandleExhausted(ctx context.Context, job queue.Job, err error) {
	p.logger.Error().Err(err).Str("order_id", job.EntityID).Msg("submission attempts exhausted")
	if failErr := p.service.db.FailIfStillQueued(job.EntityID, "submission attempts exhausted: "+err.Error()); failErr != nil {
		p.logger.Error().Err(failErr).Str("order_id", job.EntityID).Msg("failed to park exhausted order")
	}
}

func (p *Processor) buildRequest(order *types.Order) partner.OrderRequest {
	return partner.OrderRequest{
		Operation:        order.OrderType,
		ClientCode:       order.ClientID,
		SchemeCode:       order.SchemeCode,
		TargetSchemeCode: order.TargetSchemeCode,
		Amount:           order.Amount,
		Units:            order.Units,
		FolioNumber:      order.FolioNumber,
		Frequency:        order.Frequency,
		Installments:     order.Installments,
		StartDate:        order.StartDate,
		MandateRef:       order.MandateRef,
	}
}

func (p *Processor) fail(order *types.Order, message string) {
	if err := p.service.db.FailIfStillQueued(order.OrderID, message); err != nil {
		p.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to mark order FAILED")
	}
}

func (p *Processor) failWithResult(order *types.Order, result partner.Result) {
	if _, err := p.service.db.Transition(order.OrderID, types.OrderFailed, func(o *types.Order) {
		o.PartnerCode = result.Status
		o.PartnerMessage = result.Message
	}); err != nil {
		p.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to record partner rejection")
	}
}
