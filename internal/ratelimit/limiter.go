// Package ratelimit provides token bucket rate limiting for the projsim MCP tools.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Tool names guarded by the MCP server.
const (
	ToolSimulate = "projsim_simulate"
	ToolGenerate = "projsim_generate"
	ToolStats    = "projsim_stats"
	ToolGraph    = "projsim_graph"
)

// Limiter is a token bucket. It is safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	tokens    float64
	lastCheck time.Time
	rate      float64          // tokens per second
	burst     int              // max burst size (also initial token count)
	nowFunc   func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The bucket starts full.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		tokens:  float64(burst),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Reserve takes a token if one is available and returns 0. Otherwise it
// takes nothing and returns how long until a token will be available, or
// a negative duration if the bucket never refills.
func (l *Limiter) Reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if !l.lastCheck.IsZero() {
		if elapsed := now.Sub(l.lastCheck).Seconds(); elapsed > 0 {
			l.tokens = math.Min(l.tokens+l.rate*elapsed, float64(l.burst))
		}
	}
	l.lastCheck = now

	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	if l.rate <= 0 {
		return -1
	}
	return time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
}

// Allow reports whether a request may proceed, consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.Reserve() == 0
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Dataset generation writes to disk and is the most tightly limited.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolSimulate: NewLimiter(1.0, 10),      // 60/minute, burst 10
		ToolGenerate: NewLimiter(2.0/60.0, 1),  // 2/minute, burst 1
		ToolStats:    NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		ToolGraph:    NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error naming the wait if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	wait := limiter.Reserve()
	switch {
	case wait == 0:
		return nil
	case wait < 0:
		return fmt.Errorf("rate limit exceeded for %s", toolName)
	default:
		return fmt.Errorf("rate limit exceeded for %s, retry in %s", toolName, wait.Round(time.Second))
	}
}
