// Package ratelimit implements a global token bucket that paces outbound
// requests to the word source.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/dictgen/internal/metrics"
)

// Pacer spaces outbound requests across all jobs.
type Pacer struct {
	limiter *rate.Limiter
}

// Config holds pacing configuration.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// New creates a Pacer. A non-positive rate disables pacing.
func New(cfg Config) *Pacer {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(r, burst)}
}

// Enabled reports whether the pacer imposes any delay at all.
func (p *Pacer) Enabled() bool {
	return p != nil && p.limiter.Limit() != rate.Inf
}

// Wait blocks until a token is available, respecting the context.
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens that were already available are not interesting.
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}
