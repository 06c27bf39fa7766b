package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, job Job) error

// ExhaustedFunc runs after a job has used up all its attempts. It is the
// pool's last word on the job; the entity owner uses it to park the record in
// a terminal state.
type ExhaustedFunc func(ctx context.Context, job Job, err error)

// PoolConfig tunes a worker Pool. Zero values take the production defaults:
// 5 workers, 3 attempts per job, 1s backoff base.
type PoolConfig struct {
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	Sleep       func(time.Duration)
	OnExhausted ExhaustedFunc
}

// Pool consumes jobs from a Queue and dispatches them by kind. The handler
// table is fixed at construction, so an unknown kind is a wiring bug and is
// logged rather than retried.
type Pool struct {
	queue    Queue
	handlers map[string]Handler
	cfg      PoolConfig
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

func NewPool(q Queue, handlers map[string]Handler, cfg PoolConfig) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Pool{
		queue:    q,
		handlers: handlers,
		cfg:      cfg,
		logger:   log.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info().Int("concurrency", p.cfg.Concurrency).Msg("starting worker pool")
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.run(ctx, worker)
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, worker int) {
	logger := p.logger.With().Int("worker", worker).Logger()
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("worker shutting down")
				return
			}
			logger.Error().Err(err).Msg("dequeue failed")
			p.cfg.Sleep(time.Second)
			continue
		}
		p.process(ctx, logger, *job)
	}
}

func (p *Pool) process(ctx context.Context, logger zerolog.Logger, job Job) {
	handler, ok := p.handlers[job.Kind]
	if !ok {
		logger.Error().Str("kind", job.Kind).Str("job_id", job.ID).Msg("no handler registered for job kind")
		return
	}

	err := handler(ctx, job)
	if err == nil {
		return
	}

	attempt := job.Attempt + 1
	if attempt >= p.cfg.MaxAttempts {
		logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("entity_id", job.EntityID).
			Int("attempts", attempt).
			Msg("job attempts exhausted")
		if p.cfg.OnExhausted != nil {
			p.cfg.OnExhausted(ctx, job, err)
		}
		return
	}

	logger.Warn().Err(err).
		Str("job_id", job.ID).
		Int("attempt", attempt).
		Msg("job failed, re-enqueueing")

	p.cfg.Sleep(Backoff(p.cfg.BackoffBase, job.Attempt))
	job.Attempt = attempt
	if enqErr := p.queue.Enqueue(ctx, job); enqErr != nil {
		logger.Error().Err(enqErr).Str("job_id", job.ID).Msg("re-enqueue failed, job lost")
		if p.cfg.OnExhausted != nil {
			p.cfg.OnExhausted(ctx, job, err)
		}
	}
}

// Backoff returns the delay before retry number attempt (zero-based):
// base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt)
}
