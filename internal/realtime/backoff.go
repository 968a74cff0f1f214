package realtime

import (
	"math/rand/v2"
	"time"
)

// BackoffConfig tunes the reconnect delay schedule.
type BackoffConfig struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	// Jitter is the +/- fraction applied to each delay so resubscribing
	// partitions do not reconnect in lockstep.
	Jitter float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Base <= 0 {
		c.Base = 500 * time.Millisecond
	}
	if c.Max <= 0 {
		c.Max = 30 * time.Second
	}
	if c.Factor <= 1 {
		c.Factor = 2.0
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = 0.2
	}
	return c
}

type backoff struct {
	cfg     BackoffConfig
	attempt int
	randFn  func() float64
}

func newBackoff(cfg BackoffConfig) *backoff {
	return &backoff{cfg: cfg.withDefaults(), randFn: rand.Float64}
}

// Next returns the delay before the next reconnect attempt and advances the
// schedule. Growth is exponential up to the cap, with jitter applied last so
// the cap bounds the pre-jitter delay.
func (b *backoff) Next() time.Duration {
	if b.attempt < 0 {
		b.attempt = 0
	}
	d := float64(b.cfg.Base)
	for i := 0; i < b.attempt; i++ {
		d *= b.cfg.Factor
		if d >= float64(b.cfg.Max) {
			d = float64(b.cfg.Max)
			break
		}
	}
	b.attempt++

	if b.cfg.Jitter > 0 {
		d *= 1 + b.cfg.Jitter*(2*b.randFn()-1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Reset returns the schedule to its initial delay after a successful connect.
func (b *backoff) Reset() {
	b.attempt = 0
}
