package transport

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/soyeahso/slotchat/internal/config"
)

// Backoff computes reconnect delays. The k-th consecutive failure waits
// min(Initial * Factor^(k-1), Max), optionally spread by a symmetric jitter
// fraction. Not safe for concurrent use; the Manager guards it.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
	Jitter  float64

	attempt int
	capped  bool
	rand    func() float64
}

// NewBackoff builds a Backoff from config.
func NewBackoff(cfg config.BackoffConfig) *Backoff {
	return &Backoff{
		Initial: cfg.Initial(),
		Factor:  cfg.Factor,
		Max:     cfg.Max(),
		Jitter:  cfg.Jitter,
		rand:    rand.Float64,
	}
}

// Next advances the attempt counter and returns the delay to wait.
func (b *Backoff) Next() time.Duration {
	b.attempt++
	base := float64(b.Initial) * math.Pow(b.Factor, float64(b.attempt-1))
	if base >= float64(b.Max) {
		base = float64(b.Max)
		b.capped = true
	}

	delay := base
	if b.Jitter > 0 && b.rand != nil {
		delay += base * b.Jitter * (2*b.rand() - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Capped reports whether the most recent delay reached Max.
func (b *Backoff) Capped() bool { return b.capped }

// Attempt is the number of delays handed out since the last Reset.
func (b *Backoff) Attempt() int { return b.attempt }

// Reset returns the sequence to Initial.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.capped = false
}
