package partner

import (
	"sync"
	"time"
)

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig tunes a Breaker. Zero values fall back to the defaults used
// against the partner exchanges: trip at a 50% failure rate over the last
// minute once at least 5 calls have been seen, stay open for 60s.
type BreakerConfig struct {
	ErrorThreshold float64
	MinVolume      int
	Window         time.Duration
	ResetTimeout   time.Duration
	Now            func() time.Time
	OnStateChange  func(from, to BreakerState)
}

type outcome struct {
	at     time.Time
	failed bool
}

// Breaker is a rolling-window circuit breaker. Failure rate is computed over
// outcomes inside the window rather than a simple consecutive-failure count,
// so a burst of successes dilutes old failures.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	outcomes []outcome
	openedAt time.Time
	probing  bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = 0.5
	}
	if cfg.MinVolume <= 0 {
		cfg.MinVolume = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn under the breaker. In the open state it fails fast with
// ErrCircuitOpen; after ResetTimeout a single half-open probe is let through
// while concurrent callers keep failing fast.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	now := b.cfg.Now()

	if b.state == StateOpen {
		if now.Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	// A panicking fn must still be settled as a failure, otherwise a
	// half-open probe that panics leaves probing set and the breaker
	// fails fast forever.
	completed := false
	defer func() {
		if !completed {
			b.settle(true)
		}
	}()

	err := fn()
	completed = true
	b.settle(err != nil)
	return err
}

func (b *Breaker) settle(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.cfg.Now()

	if b.state == StateHalfOpen {
		b.probing = false
		if failed {
			b.openedAt = now
			b.transition(StateOpen)
			return
		}
		b.outcomes = nil
		b.transition(StateClosed)
		return
	}

	b.outcomes = append(b.outcomes, outcome{at: now, failed: failed})
	b.prune(now)
	if failed && b.shouldTrip() {
		b.openedAt = now
		b.transition(StateOpen)
	}
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	keep := b.outcomes[:0]
	for _, o := range b.outcomes {
		if o.at.After(cutoff) {
			keep = append(keep, o)
		}
	}
	b.outcomes = keep
}

func (b *Breaker) shouldTrip() bool {
	total := len(b.outcomes)
	if total < b.cfg.MinVolume {
		return false
	}
	failures := 0
	for _, o := range b.outcomes {
		if o.failed {
			failures++
		}
	}
	return float64(failures)/float64(total) >= b.cfg.ErrorThreshold
}

func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
