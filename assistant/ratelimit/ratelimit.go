package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces tokens per minute (TPM) and requests per minute (RPM) for a
// quota-bound generation provider. A non-positive limit disables that dimension.
type Limiter struct {
	mu       sync.Mutex
	tokens   *rate.Limiter
	requests *rate.Limiter
}

// NewLimiter creates a new rate limiter with specified TPM and RPM limits
func NewLimiter(tpm, rpm int) *Limiter {
	return &Limiter{
		tokens:   newPerMinute(tpm),
		requests: newPerMinute(rpm),
	}
}

func newPerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(perMinute(n), n)
}

func perMinute(n int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(n))
}

// Wait blocks until the request can proceed within rate limits
func (l *Limiter) Wait(ctx context.Context, tokensNeeded int) error {
	l.mu.Lock()
	requests, tokens := l.requests, l.tokens
	l.mu.Unlock()

	if err := requests.Wait(ctx); err != nil {
		return err
	}

	// A single request larger than the whole minute budget waits for a full bucket.
	if burst := tokens.Burst(); tokens.Limit() != rate.Inf && tokensNeeded > burst {
		tokensNeeded = burst
	}
	if tokensNeeded <= 0 {
		return nil
	}
	return tokens.WaitN(ctx, tokensNeeded)
}

// EstimateTokens roughly estimates prompt tokens (1 token ~= 4 chars), with a floor of 100
func EstimateTokens(text string) int {
	estimated := len(text) / 4
	if estimated < 100 {
		estimated = 100
	}
	return estimated
}

// SetTPM updates the tokens per minute limit
func (l *Limiter) SetTPM(tpm int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = newPerMinute(tpm)
}

// SetRPM updates the requests per minute limit
func (l *Limiter) SetRPM(rpm int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = newPerMinute(rpm)
}

// Limits reports the current caps; 0 means unlimited
func (l *Limiter) Limits() (tpm, rpm int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return capOf(l.tokens), capOf(l.requests)
}

func capOf(r *rate.Limiter) int {
	if r.Limit() == rate.Inf {
		return 0
	}
	return r.Burst()
}
