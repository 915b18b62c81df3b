package client

import "time"

const (
	defaultBackoffBase    = 3 * time.Second
	defaultBackoffMax     = 30 * time.Second
	defaultAttemptCeiling = 50
	defaultCooldown       = 60 * time.Second
)

// Backoff computes reconnect delays: min(base * 2^attempt, max). Hitting
// the attempt ceiling yields one long cooldown and resets the counter, so
// the client never permanently gives up and never retries in a tight loop.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Ceiling  int
	Cooldown time.Duration

	attempt int
}

func NewBackoff() *Backoff {
	return &Backoff{
		Base:     defaultBackoffBase,
		Max:      defaultBackoffMax,
		Ceiling:  defaultAttemptCeiling,
		Cooldown: defaultCooldown,
	}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	if b.attempt >= b.Ceiling {
		b.attempt = 0
		return b.Cooldown
	}

	d := b.Base
	for i := 0; i < b.attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	b.attempt++
	return d
}

// Reset is called after any successful connect.
func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) Attempts() int {
	return b.attempt
}
