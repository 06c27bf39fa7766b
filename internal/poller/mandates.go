package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wealthdesk/exchange-gateway/internal/batch"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/lock"
	"github.com/wealthdesk/exchange-gateway/internal/mandates"
	"github.com/wealthdesk/exchange-gateway/internal/metrics"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

type MandatePollerConfig struct {
	Exchange    types.Exchange
	Service     *mandates.Service
	Credentials *credentials.Service
	Client      partner.Client
	Locks       *lock.Coordinator
	Tracker     *batch.Tracker
	Metrics     *metrics.Metrics
	Interval    time.Duration
	BatchSize   int
	LockTTL     time.Duration
}

type MandatePoller struct {
	cfg    MandatePollerConfig
	logger zerolog.Logger
}

func NewMandatePoller(cfg MandatePollerConfig) *MandatePoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	return &MandatePoller{
		cfg:    cfg,
		logger: log.With().Str("component", "mandate_poller").Str("exchange", string(cfg.Exchange)).Logger(),
	}
}

func (p *MandatePoller) Name() string {
	return "mandate_poll_" + strings.ToLower(string(p.cfg.Exchange))
}

func (p *MandatePoller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("starting mandate poller")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down mandate poller")
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error().Err(err).Msg("mandate poll cycle failed")
			}
		}
	}
}

func (p *MandatePoller) Tick(ctx context.Context) error {
	if !p.cfg.Locks.Acquire(ctx, p.Name(), p.cfg.LockTTL) {
		p.logger.Debug().Msg("poll lock held elsewhere, skipping cycle")
		p.cfg.Metrics.ObservePollerRun(p.Name(), "skipped")
		return nil
	}
	defer p.cfg.Locks.Release(ctx, p.Name())

	err := p.cfg.Tracker.TrackRun(p.Name(), func() (batch.Counts, error) {
		return p.poll(ctx)
	})
	if err != nil {
		p.cfg.Metrics.ObservePollerRun(p.Name(), "failed")
		return err
	}
	p.cfg.Metrics.ObservePollerRun(p.Name(), "completed")
	return nil
}

func (p *MandatePoller) poll(ctx context.Context) (batch.Counts, error) {
	var counts batch.Counts

	pending, err := p.cfg.Service.Database().PendingForExchange(p.cfg.Exchange, p.cfg.BatchSize)
	if err != nil {
		return counts, fmt.Errorf("loading pending mandates: %w", err)
	}
	counts.Total = len(pending)
	if len(pending) == 0 {
		return counts, nil
	}

	byAdvisor := make(map[string][]types.Mandate)
	for _, mandate := range pending {
		byAdvisor[mandate.AdvisorID] = append(byAdvisor[mandate.AdvisorID], mandate)
	}

	for advisorID, group := range byAdvisor {
		creds, err := p.cfg.Credentials.Decrypted(advisorID, p.cfg.Exchange)
		if err != nil {
			p.logger.Warn().Err(err).Str("advisor_id", advisorID).Msg("skipping advisor, credentials unavailable")
			counts.Failed += len(group)
			continue
		}

		ids := make([]string, 0, len(group))
		for _, mandate := range group {
			ids = append(ids, *mandate.ExternalMandateID)
		}
		records, err := p.cfg.Client.MandateStatuses(ctx, creds, ids)
		if err != nil {
			p.logger.Warn().Err(err).Str("advisor_id", advisorID).Msg("status report failed for advisor")
			counts.Failed += len(group)
			continue
		}

		byExternalID := make(map[string]partner.MandateStatusRecord, len(records))
		for _, rec := range records {
			byExternalID[rec.ExternalMandateID] = rec
		}

		for i := range group {
			mandate := group[i]
			rec, ok := byExternalID[*mandate.ExternalMandateID]
			if !ok {
				counts.Synced++
				continue
			}
			p.cfg.Service.ApplyStatusRecord(ctx, &mandate, rec)
			counts.Synced++
		}
	}
	return counts, nil
}
