// Package identity resolves inbound credentials into request-scoped
// tenant identity.
package identity

import (
	"context"
)

// RequestContext is the immutable identity attached to one request. Empty
// fields mean absent. The zero value is the anonymous context, which is valid
// input only to public procedures.
//
// Invariant: TenantID is never present without SubjectID. A tenant-scoped
// context always implies an authenticated subject.
type RequestContext struct {
	SubjectID string
	TenantID  string
	Email     string
	Role      string
}

// Anonymous reports whether the context carries no authenticated subject.
func (rc RequestContext) Anonymous() bool {
	return rc.SubjectID == ""
}

// Authenticated reports whether the context is both subject- and
// tenant-scoped.
func (rc RequestContext) Authenticated() bool {
	return rc.SubjectID != "" && rc.TenantID != ""
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying the resolved request context.
func NewContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext retrieves the resolved request context. Returns the anonymous
// context when none was attached.
func FromContext(ctx context.Context) RequestContext {
	if rc, ok := ctx.Value(contextKey{}).(RequestContext); ok {
		return rc
	}
	return RequestContext{}
}
