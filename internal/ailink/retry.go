package ailink

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy repeats a failed provider call with capped exponential backoff
// and jitter. Attempts counts the first call; 1 disables retries.
type RetryPolicy struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// DefaultRetryPolicy makes a single attempt.
var DefaultRetryPolicy = RetryPolicy{Attempts: 1, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 4 * time.Second}

// Do runs fn until it succeeds, retryable reports false, attempts run out or
// the next backoff would outlive ctx. It returns the number of calls made.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		if attempt == attempts-1 || retryable == nil || !retryable(err) {
			return attempt + 1, err
		}

		delay := p.backoff(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			return attempt + 1, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, err
		case <-timer.C:
		}
	}
	return attempts, err
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = DefaultRetryPolicy.InitialBackoff
	}
	maxDelay := p.MaxBackoff
	if maxDelay < initial {
		maxDelay = initial
	}

	b := float64(initial) * math.Pow(2, float64(attempt))
	if b > float64(maxDelay) {
		b = float64(maxDelay)
	}
	half := b / 2
	return time.Duration(half + rand.Float64()*half)
}
