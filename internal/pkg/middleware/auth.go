package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/tenantgate/tenant-gate/internal/identity"
	"github.com/tenantgate/tenant-gate/internal/pkg/requestctx"
)

// Auth returns a middleware that resolves the request's credential into a
// RequestContext and attaches it to the request context. Resolution never
// rejects; procedures decide via their guards.
func Auth(resolver *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), rc)))
		})
	}
}

// RequestID returns a middleware that assigns every request a short unique
// ID, exposed as the X-Request-ID response header and via the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), reqID)))
	})
}

// generateRequestID generates a short unique request ID.
func generateRequestID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
