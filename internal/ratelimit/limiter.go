// Package ratelimit provides client-side rate limiting for job server calls
// using a token bucket per endpoint scope.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
// A cooldown, set after the server answered 429, blocks all acquisitions
// until it expires.
type RateLimiter struct {
	name          string
	tokens        float64   // Current number of tokens available
	maxTokens     float64   // Maximum bucket capacity
	refillRate    float64   // Tokens added per second
	lastRefill    time.Time // Last time tokens were refilled
	lastWarnTime  time.Time // Last time we warned about rate limiting
	cooldownUntil time.Time
	mu            sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added (e.g., 3.0 for 3 tokens/second)
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
func NewRateLimiter(tokensPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		name:       "default",
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// NewScopeRateLimiter creates a limiter sized for scope.
func NewScopeRateLimiter(scope Scope) *RateLimiter {
	cfg := scopeConfig(scope)
	rl := NewRateLimiter(cfg.Rate, cfg.Burst)
	rl.name = string(scope)
	return rl
}

// Wait blocks until a token is available or context is cancelled.
// Returns ctx.Err() if the context ends first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	startTime := time.Now()

	if rl.tryAcquire() {
		return nil
	}

	waitTime := rl.timeUntilNextToken()
	if waitTime > WarnWaitThreshold {
		rl.mu.Lock()
		if time.Since(rl.lastWarnTime) > WarnInterval {
			log.Warn().Str("scope", rl.name).Dur("wait", waitTime).Msg("rate limited, waiting for capacity")
			rl.lastWarnTime = time.Now()
		}
		rl.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if rl.tryAcquire() {
			if actualWait := time.Since(startTime); actualWait > LogWaitThreshold {
				log.Info().Str("scope", rl.name).Dur("waited", actualWait).Msg("rate limit wait completed")
			}
			return nil
		}

		timer := time.NewTimer(rl.timeUntilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire attempts to acquire one token without blocking.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.refillLocked(now)

	if now.Before(rl.cooldownUntil) {
		return false
	}
	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is
// available and any cooldown has expired.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var wait time.Duration
	if rl.refillRate > 0 {
		if tokensNeeded := 1.0 - rl.tokens; tokensNeeded > 0 {
			wait = time.Duration(tokensNeeded / rl.refillRate * float64(time.Second))
		}
	} else if rl.tokens < 1.0 {
		wait = time.Second
	}
	if cd := time.Until(rl.cooldownUntil); cd > wait {
		wait = cd
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

// Drain empties the bucket. Used after a 429 so that the next requests pace
// themselves from zero instead of spending the remaining burst.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	rl.tokens = 0
}

// SetCooldown blocks acquisitions for d. An active longer cooldown is never shortened.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns how long the current cooldown still lasts, or zero.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if d := time.Until(rl.cooldownUntil); d > 0 {
		return d
	}
	return 0
}

// GetCurrentTokens returns the current number of tokens (for testing/debugging).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := time.Since(rl.lastRefill).Seconds()
	tokens := rl.tokens + (elapsed * rl.refillRate)
	if tokens > rl.maxTokens {
		tokens = rl.maxTokens
	}
	return tokens
}
