package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/tenantgate/tenant-gate/internal/audit"
	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
	"github.com/tenantgate/tenant-gate/internal/pkg/requestctx"
	"github.com/tenantgate/tenant-gate/internal/ratelimit"
)

// Admitter decides whether a request from the given caller key is admitted.
type Admitter interface {
	Allow(ctx context.Context, callerKey string) ratelimit.Result
}

// RateLimitOptions configures the rate limit middleware.
type RateLimitOptions struct {
	// Admitter makes the admission decision.
	Admitter Admitter
	// Errors writes rejections.
	Errors *apperrors.Normalizer
	// Audit receives rejection events. May be nil.
	Audit audit.Bus
	// Topic is the audit topic rejections publish to. Empty selects the
	// default decisions topic.
	Topic string
	// Source names this process in audit events.
	Source string
}

// RateLimit returns a middleware that gates every request through the
// admitter, keyed by client address. Admitted requests carry the
// X-RateLimit-* header triplet when the decision was store-backed; degraded
// (fail-open) admissions carry no headers.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	topic := opts.Topic
	if topic == "" {
		topic = audit.TopicDecisions
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerKey := getClientIP(r)
			res := opts.Admitter.Allow(r.Context(), callerKey)

			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
			}

			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				if opts.Audit != nil {
					_ = opts.Audit.Publish(r.Context(), topic,
						audit.NewEvent(audit.TypeRateLimitRejected, opts.Source, audit.Decision{
							RequestID: requestctx.GetRequestID(r.Context()),
							Code:      apperrors.CodeRateLimited,
							CallerKey: callerKey,
							Method:    r.Method,
							Path:      r.URL.Path,
						}))
				}

				opts.Errors.WriteError(w, r, apperrors.RateLimited(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
