package offline

import (
	"errors"
	"time"

	"beacon/models"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how long a queued create keeps being retried.
type RetryPolicy struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxAttempts         int
	MaxAge              time.Duration
	// ClaimLease is how long an inflight item may go unsettled before a drain takes it back.
	ClaimLease time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:     5 * time.Second,
		MaxInterval:         30 * time.Minute,
		Multiplier:          2,
		RandomizationFactor: 0.2,
		MaxAttempts:         12,
		MaxAge:              7 * 24 * time.Hour,
		ClaimLease:          2 * time.Minute,
	}
}

// LeaseUntil is when a claim taken at now expires.
func (p RetryPolicy) LeaseUntil(now time.Time) time.Time {
	lease := p.ClaimLease
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	return now.Add(lease)
}

// NextDelay is the wait before retry number attempts (1 for the first retry).
func (p RetryPolicy) NextDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Exhausted reports whether the item should be dropped instead of retried.
func (p RetryPolicy) Exhausted(item models.QueueItem, now time.Time) bool {
	if p.MaxAttempts > 0 && item.Attempts >= p.MaxAttempts {
		return true
	}
	return p.MaxAge > 0 && now.Sub(item.CreatedAt) > p.MaxAge
}

// Permanent marks a delivery error that retrying cannot fix.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
