package retry

import (
	"math"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
	defaultMultiplier = 2.0
	defaultJitter     = 0.25
)

// Backoff computes the delay before a retry attempt.
//
// The delay for attempt n is base * multiplier^(n-1), with symmetric jitter
// of ±(Jitter*100)% applied, then clamped to Max. Backoff is a value type
// with no mutable state; the same Backoff can be shared by any number of
// concurrent retry loops.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Max is the ceiling applied after jitter.
	Max time.Duration

	// Multiplier is the exponential growth factor. Values <= 1 fall back
	// to the default of 2.0.
	Multiplier float64

	// Jitter is the symmetric jitter fraction (0.25 means ±25%).
	// Negative values or values above 1 fall back to the default.
	Jitter float64

	rng *rand.Rand
}

// DefaultBackoff returns the standard backoff profile: 1s base, 30s cap,
// 2.0 multiplier, ±25% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       defaultBaseDelay,
		Max:        defaultMaxDelay,
		Multiplier: defaultMultiplier,
		Jitter:     defaultJitter,
	}
}

// WithSeed returns a copy of the Backoff whose jitter is driven by a
// dedicated deterministic source. Intended for tests that need reproducible
// delays; production callers use the shared global source.
func (b Backoff) WithSeed(seed int64) Backoff {
	b.rng = rand.New(rand.NewSource(seed))
	return b
}

// Delay returns the delay before the given retry attempt. Attempt numbers
// start at 1; values below 1 are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := b.Base
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := b.Max
	if max <= 0 {
		max = defaultMaxDelay
	}
	multiplier := b.Multiplier
	if multiplier <= 1 {
		multiplier = defaultMultiplier
	}
	jitter := b.Jitter
	if jitter < 0 || jitter > 1 {
		jitter = defaultJitter
	}

	raw := float64(base) * math.Pow(multiplier, float64(attempt-1))

	// guard against float overflow for large attempt numbers
	if raw > float64(math.MaxInt64)/2 {
		raw = float64(math.MaxInt64) / 2
	}

	if jitter > 0 {
		raw *= 1 + jitter*(2*b.random()-1)
	}

	delay := time.Duration(raw)
	if delay > max {
		delay = max
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// random returns a jitter sample in [0, 1).
func (b Backoff) random() float64 {
	if b.rng != nil {
		return b.rng.Float64()
	}
	return rand.Float64()
}
