package service

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ExponentialRetrySchedule doubles the retry delay from InitialInterval up to
// MaxInterval. A zero InitialInterval retries on the next publisher tick.
type ExponentialRetrySchedule struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewExponentialRetrySchedule creates a new ExponentialRetrySchedule.
func NewExponentialRetrySchedule(initial, maxInterval time.Duration) *ExponentialRetrySchedule {
	return &ExponentialRetrySchedule{InitialInterval: initial, MaxInterval: maxInterval}
}

// Delay returns the wait before the given retry attempt, starting at 1.
func (s *ExponentialRetrySchedule) Delay(attempt int) time.Duration {
	if s.InitialInterval <= 0 || attempt < 1 {
		return 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval
	b.MaxInterval = s.MaxInterval
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
