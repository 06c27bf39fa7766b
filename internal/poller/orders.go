// Package poller reconciles locally tracked orders and mandates against the
// partner exchanges' status reports. Each poller runs on a ticker, takes a
// distributed lock so only one gateway instance polls a given exchange, and
// records every cycle as a batch run.
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wealthdesk/exchange-gateway/internal/batch"
	"github.com/wealthdesk/exchange-gateway/internal/cache"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/lock"
	"github.com/wealthdesk/exchange-gateway/internal/metrics"
	"github.com/wealthdesk/exchange-gateway/internal/orders"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 50
	MaxBatchSize     = 100
)

type OrderPollerConfig struct {
	Exchange    types.Exchange
	DB          *orders.Database
	Credentials *credentials.Service
	Client      partner.Client
	Locks       *lock.Coordinator
	Tracker     *batch.Tracker
	Cache       *cache.Invalidator
	Metrics     *metrics.Metrics
	Interval    time.Duration
	BatchSize   int
	LockTTL     time.Duration
}

type OrderPoller struct {
	cfg    OrderPollerConfig
	logger zerolog.Logger
}

func NewOrderPoller(cfg OrderPollerConfig) *OrderPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	return &OrderPoller{
		cfg:    cfg,
		logger: log.With().Str("component", "order_poller").Str("exchange", string(cfg.Exchange)).Logger(),
	}
}

// Name identifies this poller in locks, run logs and metrics.
func (p *OrderPoller) Name() string {
	return "order_poll_" + strings.ToLower(string(p.cfg.Exchange))
}

// Run polls on a ticker until the context is cancelled.
func (p *OrderPoller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("starting order poller")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down order poller")
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error().Err(err).Msg("order poll cycle failed")
			}
		}
	}
}

// Tick runs a single poll cycle behind the distributed lock.
func (p *OrderPoller) Tick(ctx context.Context) error {
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

func (p *OrderPoller) poll(ctx context.Context) (batch.Counts, error) {
	var counts batch.Counts

	pending, err := p.cfg.DB.PendingForExchange(p.cfg.Exchange, p.cfg.BatchSize)
	if err != nil {
		return counts, fmt.Errorf("loading pending orders: %w", err)
	}
	counts.Total = len(pending)
	if len(pending) == 0 {
		return counts, nil
	}

	// One status report per advisor: partner reports are scoped to the
	// advisor's own credentials.
	byAdvisor := make(map[string][]types.Order)
	for _, order := range pending {
		byAdvisor[order.AdvisorID] = append(byAdvisor[order.AdvisorID], order)
	}

	for advisorID, group := range byAdvisor {
		creds, err := p.cfg.Credentials.Decrypted(advisorID, p.cfg.Exchange)
		if err != nil {
			p.logger.Warn().Err(err).Str("advisor_id", advisorID).Msg("skipping advisor, credentials unavailable")
			counts.Failed += len(group)
			continue
		}

		ids := make([]string, 0, len(group))
		for _, order := range group {
			ids = append(ids, *order.ExternalOrderID)
		}
		records, err := p.cfg.Client.OrderStatuses(ctx, creds, ids)
		if err != nil {
			p.logger.Warn().Err(err).Str("advisor_id", advisorID).Msg("status report failed for advisor")
			counts.Failed += len(group)
			continue
		}

		byExternalID := make(map[string]partner.OrderStatusRecord, len(records))
		for _, rec := range records {
			byExternalID[rec.ExternalOrderID] = rec
		}

		for _, order := range group {
			rec, ok := byExternalID[*order.ExternalOrderID]
			if !ok {
				// Not in the report yet; pick it up next cycle.
				counts.Synced++
				continue
			}
			if err := p.apply(ctx, order, rec); err != nil {
				counts.Failed++
				continue
			}
			counts.Synced++
		}
	}
	return counts, nil
}

func (p *OrderPoller) apply(ctx context.Context, order types.Order, rec partner.OrderStatusRecord) error {
	next := MapOrderStatus(rec.Status)
	if next == "" || next == order.Status {
		return nil
	}

	applied, err := p.cfg.DB.Transition(order.OrderID, next, func(o *types.Order) {
		o.PartnerCode = rec.Status
		if rec.AllottedUnits != nil {
			o.AllottedUnits = rec.AllottedUnits
		}
		if rec.AllottedNAV != nil {
			o.AllottedNAV = rec.AllottedNAV
		}
		if rec.AllottedAmount != nil {
			o.AllottedAmount = rec.AllottedAmount
		}
		if next == types.OrderAllotted {
			now := time.Now()
			o.AllottedAt = &now
		}
	})
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to apply order status")
		return err
	}
	if applied {
		p.cfg.Cache.InvalidateFor(ctx, order.AdvisorID, order.ClientID)
		p.logger.Info().
			Str("order_id", order.OrderID).
			Str("status", string(next)).
			Msg("order status updated from partner")
	}
	return nil
}
