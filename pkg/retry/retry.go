package retry

import (
	"context"
	"time"
)

// Policy is a bounded exponential backoff: attempt n waits
// clamp(Base * 2^(n-1), Min, Max). External intel lookups use the default
// policy, which bounds total wait per indicator to Attempts * Max.
type Policy struct {
	Attempts int
	Base     time.Duration
	Min      time.Duration
	Max      time.Duration
}

// DefaultPolicy matches the external lookup contract: 3 attempts,
// exponential base 1s, wait window [4s, 10s].
var DefaultPolicy = Policy{
	Attempts: 3,
	Base:     1 * time.Second,
	Min:      4 * time.Second,
	Max:      10 * time.Second,
}

// Wait returns the backoff delay before retrying after attempt (1-based).
func (p Policy) Wait(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d < p.Min {
		d = p.Min
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}

// Do runs fn up to p.Attempts times, sleeping p.Wait between failures.
// Returns the last error when all attempts fail, or ctx.Err() when the
// context ends first.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Wait(attempt)):
		}
	}
	return err
}
