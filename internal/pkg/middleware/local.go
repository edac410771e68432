package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tenantgate/tenant-gate/internal/ratelimit"
)

// LocalLimiter is a process-local token-bucket admitter for single-process
// deployments where no shared counter store exists. It does not enforce a
// global quota across processes and attaches no rate-limit headers.
type LocalLimiter struct {
	mu       sync.Mutex
	clients  map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	lastSeen map[string]time.Time
}

// NewLocalLimiter creates a local admitter allowing limit requests per window
// with bursts up to limit.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	rl := &LocalLimiter{
		clients:  make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		cleanup:  time.Minute,
		lastSeen: make(map[string]time.Time),
	}

	go rl.cleanupLoop()

	return rl
}

// getLimiter returns the rate limiter for a caller, creating one if needed.
func (rl *LocalLimiter) getLimiter(callerKey string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastSeen[callerKey] = time.Now()

	limiter, exists := rl.clients[callerKey]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.clients[callerKey] = limiter
	}

	return limiter
}

// cleanupLoop removes stale caller entries.
func (rl *LocalLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		threshold := time.Now().Add(-5 * time.Minute)
		for key, lastSeen := range rl.lastSeen {
			if lastSeen.Before(threshold) {
				delete(rl.clients, key)
				delete(rl.lastSeen, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow checks whether a request from the given caller should be admitted.
func (rl *LocalLimiter) Allow(_ context.Context, callerKey string) ratelimit.Result {
	if rl.getLimiter(callerKey).Allow() {
		return ratelimit.Result{Allowed: true}
	}
	return ratelimit.Result{
		Allowed:    false,
		RetryAfter: time.Second,
	}
}
