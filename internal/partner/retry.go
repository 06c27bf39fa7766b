package partner

import (
	"context"
	"time"
)

// RetryPolicy retries transient failures with exponential backoff. Defaults
// match the settings used against both exchanges: 2 retries, 500ms base delay
// (500ms then 1s).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond}
}

// Do runs fn, retrying only transient failures. Business rejections and
// caller cancellation return immediately with the original error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt >= p.MaxRetries || ctx.Err() != nil {
			return err
		}
		sleep(p.BaseDelay << uint(attempt))
	}
}
