package mandates

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/queue"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// Processor consumes mandate registration jobs. Like the order processor,
// Handle only acts on mandates still in CREATED, so duplicate deliveries are
// harmless.
type Processor struct {
	service *Service
	logger  zerolog.Logger
}

func NewProcessor(service *Service) *Processor {
	return &Processor{
		service: service,
		logger:  log.With().Str("component", "mandate_processor").Logger(),
	}
}

func (p *Processor) Handle(ctx context.Context, job queue.Job) error {
	mandate, err := p.service.db.GetMandate(job.EntityID)
	if err != nil {
		return err
	}
	if mandate == nil {
		p.logger.Warn().Str("mandate_id", job.EntityID).Msg("registration job for unknown mandate, dropping")
		return nil
	}
	if mandate.Status != types.MandateCreated {
		p.logger.Info().
			Str("mandate_id", mandate.MandateID).
			Str("status", string(mandate.Status)).
			Msg("mandate already past CREATED, skipping duplicate registration")
		return nil
	}

	creds, err := p.service.credentials.Decrypted(mandate.AdvisorID, mandate.Exchange)
	if err != nil {
		p.reject(mandate, "credential error: "+err.Error())
		return nil
	}

	client, ok := p.service.clients[mandate.Exchange]
	if !ok {
		p.reject(mandate, "no client configured for exchange "+string(mandate.Exchange))
		return nil
	}

	req := partner.MandateRequest{
		Type:          mandate.MandateType,
		ClientCode:    mandate.ClientID,
		Amount:        mandate.Amount,
		AccountNumber: mandate.AccountNumber,
		IFSCCode:      mandate.IFSCCode,
		BankName:      mandate.BankName,
		StartDate:     mandate.StartDate,
		EndDate:       mandate.EndDate,
	}
	ack, err := client.RegisterMandate(ctx, creds, req)
	if err != nil {
		if errors.Is(err, partner.ErrCircuitOpen) || partner.IsTransient(err) {
			return err
		}
		p.reject(mandate, err.Error())
		return nil
	}

	if perr := partner.ErrorFromResult(ack.Result); perr != nil {
		var pe *partner.Error
		if errors.As(perr, &pe) && pe.Retryable() {
			return perr
		}
		p.logger.Warn().
			Str("mandate_id", mandate.MandateID).
			Str("code", ack.Result.Status).
			Msg("mandate registration rejected by partner")
		p.rejectWithResult(mandate, ack.Result)
		return nil
	}

	// Same rule as order submission: without the partner's mandate reference
	// the status poller can never reconcile this row.
	if ack.ExternalMandateID == "" {
		p.logger.Error().
			Str("mandate_id", mandate.MandateID).
			Str("code", ack.Result.Status).
			Msg("partner ack carried no mandate reference")
		p.rejectWithResult(mandate, partner.Result{
			Status:  ack.Result.Status,
			Message: "partner accepted the mandate without returning a reference",
		})
		return nil
	}

	now := time.Now()
	applied, err := p.service.db.Transition(mandate.MandateID, types.MandateSubmitted, func(m *types.Mandate) {
		id := ack.ExternalMandateID
		m.ExternalMandateID = &id
		m.AuthURL = ack.AuthURL
		m.PartnerCode = ack.Result.Status
		m.PartnerMessage = ack.Result.Message
		m.SubmittedAt = &now
	})
	if err != nil {
		return err
	}
	if applied {
		p.service.cache.InvalidateFor(ctx, mandate.AdvisorID, mandate.ClientID)
		p.logger.Info().
			Str("mandate_id", mandate.MandateID).
			Str("external_mandate_id", ack.ExternalMandateID).
			Msg("mandate registered with partner")
	}
	return nil
}

func (p *Processor) HandleExhausted(ctx context.Context, job queue.Job, err error) {
	p.logger.Error().Err(err).Str("mandate_id", job.EntityID).Msg("registration attempts exhausted")
	if rejErr := p.service.db.RejectIfStillCreated(job.EntityID, "registration attempts exhausted: "+err.Error()); rejErr != nil {
		p.logger.Error().Err(rejErr).Str("mandate_id", job.EntityID).Msg("failed to park exhausted mandate")
	}
}

func (p *Processor) reject(mandate *types.Mandate, message string) {
	if err := p.service.db.RejectIfStillCreated(mandate.MandateID, message); err != nil {
		p.logger.Error().Err(err).Str("mandate_id", mandate.MandateID).Msg("failed to mark mandate REJECTED")
	}
}

func (p *Processor) rejectWithResult(mandate *types.Mandate, result partner.Result) {
	if _, err := p.service.db.Transition(mandate.MandateID, types.MandateRejected, func(m *types.Mandate) {
		m.PartnerCode = result.Status
		m.PartnerMessage = result.Message
	}); err != nil {
		p.logger.Error().Err(err).Str("mandate_id", mandate.MandateID).Msg("failed to record partner rejection")
	}
}
