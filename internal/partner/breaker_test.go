package partner

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *Breaker {
	return NewBreaker(BreakerConfig{
		ErrorThreshold: 0.5,
		MinVolume:      5,
		Window:         time.Minute,
		ResetTimeout:   60 * time.Second,
		Now:            clock.Now,
	})
}

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreakerStaysClosedBelowMinVolume(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 4; i++ {
		if err := b.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("expected wrapped error, got %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED below min volume", b.State())
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	// 3 failures out of 6 calls = exactly 50%.
	for i := 0; i < 3; i++ {
		b.Execute(succeed)
	}
	for i := 0; i < 3; i++ {
		b.Execute(fail)
	}

	if b.State() != StateOpen {
		t.Fatalf("state = %s, want OPEN at 50%% failure rate", b.State())
	}
	if err := b.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestBreakerIgnoresOutcomesOutsideWindow(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 4; i++ {
		b.Execute(fail)
	}
	clock.Advance(2 * time.Minute)

	// Old failures have aged out; one more failure is volume 1 of 1.
	b.Execute(fail)
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED after window rolled past old failures", b.State())
	}
}

func TestBreakerHalfOpenProbeSuccessCloses(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		b.Execute(fail)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want OPEN", b.State())
	}

	clock.Advance(61 * time.Second)
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("probe should run, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED after successful probe", b.State())
	}

	// History was reset on close: a single failure must not re-trip.
	b.Execute(fail)
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED after one post-recovery failure", b.State())
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		b.Execute(fail)
	}
	clock.Advance(61 * time.Second)

	if err := b.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe should run and fail, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("state = %s, want OPEN after failed probe", b.State())
	}

	// Reset timer restarted: still failing fast before another 60s passes.
	clock.Advance(30 * time.Second)
	if err := b.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerSingleProbeDuringHalfOpen(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		b.Execute(fail)
	}
	clock.Advance(61 * time.Second)

	probeRunning := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(func() error {
			close(probeRunning)
			<-release
			return nil
		})
	}()

	<-probeRunning
	if err := b.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("concurrent call during probe should fail fast, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("probe returned %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED", b.State())
	}
}

func TestBreakerProbePanicDoesNotWedgeBreaker(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		b.Execute(fail)
	}
	clock.Advance(61 * time.Second)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should propagate out of Execute")
			}
		}()
		b.Execute(func() error { panic("handler bug") })
	}()

	// The panicking probe counts as a failed probe: breaker reopens and,
	// after another reset timeout, lets the next probe through.
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want OPEN after panicking probe", b.State())
	}
	clock.Advance(61 * time.Second)
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("next probe should run, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED after successful probe", b.State())
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var changes []string
	b := NewBreaker(BreakerConfig{
		MinVolume: 5,
		Now:       clock.Now,
		OnStateChange: func(from, to BreakerState) {
			changes = append(changes, from.String()+">"+to.String())
		},
	})

	for i := 0; i < 5; i++ {
		b.Execute(fail)
	}
	clock.Advance(61 * time.Second)
	b.Execute(succeed)

	want := []string{"CLOSED>OPEN", "OPEN>HALF_OPEN", "HALF_OPEN>CLOSED"}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %s, want %s", i, changes[i], want[i])
		}
	}
}
