package dispatch

import (
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays: exponential growth from Base, capped at
// Cap, with full jitter so concurrent workers do not hammer the producer
// in lockstep.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff matches the original retry pacing: one second doubling,
// capped at a minute.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: time.Minute}
}

// Delay returns the jittered delay before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	ceiling := b.Cap
	if ceiling <= 0 {
		ceiling = time.Minute
	}

	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	// Full jitter: uniform in (0, d].
	return time.Duration(rand.Int64N(int64(d))) + 1
}
