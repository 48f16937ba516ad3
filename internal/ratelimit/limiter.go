// Package ratelimit throttles MCP tool calls with per-key token buckets.
// Compiling and stepping a grid is expensive, so the simulate tool gets a
// much smaller budget than the read-only tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by CheckLimit when a tool's budget is spent.
var ErrRateLimited = errors.New("rate limit exceeded")

// Tool names with a configured budget.
const (
	ToolRender   = "fit_render"
	ToolSimulate = "fit_simulate"
	ToolHistory  = "fit_history"
)

// Limiter is a token bucket per key: each key starts with burst tokens and
// regains rate tokens per second up to burst. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second with the
// given burst size.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes one token from key's bucket and reports whether one was
// available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}
	b.refill(now, l.rate, float64(l.burst))

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (b *bucket) refill(now time.Time, rate, limit float64) {
	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += rate * elapsed
	if b.tokens > limit {
		b.tokens = limit
	}
	b.lastCheck = now
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the default per-tool budgets.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolRender:   NewLimiter(1.0, 10),     // 60/minute, burst 10
		ToolSimulate: NewLimiter(6.0/60.0, 2), // 6/minute, burst 2
		ToolHistory:  NewLimiter(1.0, 10),     // 60/minute, burst 10
	}
}

// CheckLimit spends one token of toolName's budget. Tools without a
// limiter are never limited.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}
	return nil
}
