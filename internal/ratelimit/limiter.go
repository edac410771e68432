package ratelimit

import (
	"context"
	"time"

	"github.com/tenantgate/tenant-gate/internal/pkg/logger"
)

// keyPrefix namespaces limiter counters inside the shared store.
const keyPrefix = "rate_limit:"

// Result is one admission decision.
type Result struct {
	// Allowed reports whether the request is admitted.
	Allowed bool

	// Limit is the window ceiling, Remaining the admissions left in the
	// current window, Reset the time the window ends. Observational only;
	// the caller attaches them as response headers.
	Limit     int
	Remaining int
	Reset     time.Time

	// RetryAfter is the recommended wait when rejected.
	RetryAfter time.Duration

	// Degraded is set when the store was unreachable and the limiter
	// failed open. No headers should be attached for degraded results.
	Degraded bool
}

// Config configures the limiter.
type Config struct {
	// Limit is the maximum number of requests per caller per window.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
}

// DefaultConfig returns the platform quota defaults.
func DefaultConfig() Config {
	return Config{
		Limit:  100,
		Window: 60 * time.Second,
	}
}

// Limiter decides admission per caller key using fixed-window counting
// against a shared store.
//
// The window is fixed, not sliding: a burst straddling a window boundary can
// admit up to twice the nominal limit around the boundary instant. That is an
// accepted approximation of this scheme, not a defect.
//
// The limiter has no notion of identity. Caller keys are supplied by the
// caller; keying by tenant instead of client address requires no change here.
type Limiter struct {
	store CounterStore
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
}

// New creates a Limiter over the given store. A nil store is a valid,
// detected state: the limiter then admits everything (fail open), because an
// outage of the counting substrate must not become a platform outage.
func New(store CounterStore, cfg Config, log *logger.Logger) *Limiter {
	if cfg.Limit == 0 {
		cfg = DefaultConfig()
	}
	return &Limiter{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Allow decides admission for one request from callerKey.
func (l *Limiter) Allow(ctx context.Context, callerKey string) Result {
	if l.store == nil {
		return Result{Allowed: true, Degraded: true}
	}

	count, ttl, err := l.store.Increment(ctx, keyPrefix+callerKey, l.cfg.Window)
	if err != nil {
		// Fail open. Quota precision is best-effort; availability is not.
		l.log.Warn("counter store unavailable, admitting without quota",
			"error", err,
		)
		return Result{Allowed: true, Degraded: true}
	}

	remaining := l.cfg.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	// The store reports how long the current window has left, so every
	// request inside one window advertises the same reset instant.
	res := Result{
		Allowed:   count <= int64(l.cfg.Limit),
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		Reset:     l.now().Add(ttl),
	}
	if !res.Allowed {
		res.RetryAfter = l.cfg.Window
	}
	return res
}
