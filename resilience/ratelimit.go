package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the client-side rate limit.
type RateLimiterConfig struct {
	// Rate is the number of calls allowed per second.
	// Default: 50
	Rate float64

	// Burst is the bucket size.
	// Default: 10
	Burst int

	// MaxWait bounds how long a call waits for a token.
	// Default: 5s
	MaxWait time.Duration
}

// RateLimiter is a token bucket. Calls wait for a token instead of failing
// fast, up to MaxWait.
type RateLimiter struct {
	config RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full token bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 50
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 5 * time.Second
	}
	return &RateLimiter{
		config: config,
		tokens: float64(config.Burst),
		last:   time.Now(),
	}
}

// Wait takes a token, sleeping until one is available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	deadline := time.Now().Add(rl.config.MaxWait)
	for {
		wait := rl.reserve()
		if wait == 0 {
			return nil
		}
		if time.Now().Add(wait).After(deadline) {
			return ErrRateLimitExceeded
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Execute waits for a token, then runs op.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	return rl.tokens
}

// reserve takes a token and returns 0, or returns how long until one exists.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	wait := time.Duration((1 - rl.tokens) / rl.config.Rate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	rl.tokens += now.Sub(rl.last).Seconds() * rl.config.Rate
	if max := float64(rl.config.Burst); rl.tokens > max {
		rl.tokens = max
	}
	rl.last = now
}
