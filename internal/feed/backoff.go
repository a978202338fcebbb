package feed

import "time"

// Backoff computes reconnect delays: exponential doubling plus a fixed
// increment, capped, reset to the floor after a successful connect.
type Backoff struct {
	Min       time.Duration
	Max       time.Duration
	Increment time.Duration
}

// DefaultBackoff matches the reconnect policy of the production feed:
// 1s floor doubling to a 30s ceiling.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:       time.Second,
		Max:       30 * time.Second,
		Increment: time.Second,
	}
}

// Next returns the delay for the given 1-based attempt.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	wait := min
	for i := 1; i < attempt; i++ {
		wait = wait*2 + b.Increment
		if wait >= max {
			return max
		}
	}
	if wait > max {
		return max
	}
	return wait
}
