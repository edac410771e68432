// Package guard provides composable authorization predicates over a resolved
// request context.
//
// Guards are pure and synchronous: they inspect an already-resolved
// identity.RequestContext and either pass it through (possibly narrowed) or
// reject. All I/O happens before the chain runs.
package guard

import (
	"slices"

	"github.com/tenantgate/tenant-gate/internal/identity"
	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
)

// Guard is a single authorization predicate. Check returns the context the
// downstream guards and handler should see, or a rejection.
type Guard interface {
	// Name identifies the guard in audit events and tests.
	Name() string

	// Check admits, narrows, or rejects the context. Guards never widen
	// privileges: the returned context carries at most the fields of the
	// input.
	Check(rc identity.RequestContext) (identity.RequestContext, *apperrors.AppError)
}

// Chain is an ordered list of guards. Order matters: a guard that requires
// tenant scope must run after the guard that guarantees authentication.
type Chain []Guard

// Run executes the guards in attachment order. The first rejection
// short-circuits and is returned along with the name of the rejecting guard.
func (c Chain) Run(rc identity.RequestContext) (identity.RequestContext, string, *apperrors.AppError) {
	for _, g := range c {
		next, err := g.Check(rc)
		if err != nil {
			return identity.RequestContext{}, g.Name(), err
		}
		rc = next
	}
	return rc, "", nil
}

type requireAuthenticated struct{}

// RequireAuthenticated admits only contexts with both a subject and a tenant.
// After it passes, downstream guards and the handler may rely on the subject,
// tenant, email, and role fields without presence checks.
func RequireAuthenticated() Guard {
	return requireAuthenticated{}
}

func (requireAuthenticated) Name() string { return "require_authenticated" }

func (requireAuthenticated) Check(rc identity.RequestContext) (identity.RequestContext, *apperrors.AppError) {
	if !rc.Authenticated() {
		return identity.RequestContext{}, apperrors.Unauthenticated("must be authenticated")
	}
	return rc, nil
}

type enforceTenantScope struct{}

// EnforceTenantScope requires a tenant-scoped context. Normally guaranteed by
// RequireAuthenticated already; attaching it separately makes tenant scoping
// an explicit requirement of a procedure rather than a side effect.
func EnforceTenantScope() Guard {
	return enforceTenantScope{}
}

func (enforceTenantScope) Name() string { return "enforce_tenant_scope" }

func (enforceTenantScope) Check(rc identity.RequestContext) (identity.RequestContext, *apperrors.AppError) {
	if rc.TenantID == "" {
		return identity.RequestContext{}, apperrors.Unauthenticated("organization context required")
	}
	return rc, nil
}

type requireElevatedRole struct {
	role      string
	allowlist []string
}

// RequireElevatedRole admits only authenticated contexts whose role matches
// the privileged role and whose email is on the super-admin allow-list. Both
// conditions must hold: the role alone is not sufficient to reach privileged
// procedures. An anonymous context rejects as unauthenticated, not forbidden;
// forbidden is reserved for callers whose identity is present but
// insufficient.
func RequireElevatedRole(role string, allowlist []string) Guard {
	return requireElevatedRole{role: role, allowlist: allowlist}
}

func (requireElevatedRole) Name() string { return "require_elevated_role" }

func (g requireElevatedRole) Check(rc identity.RequestContext) (identity.RequestContext, *apperrors.AppError) {
	if !rc.Authenticated() {
		return identity.RequestContext{}, apperrors.Unauthenticated("must be authenticated")
	}
	if rc.Role != g.role {
		return identity.RequestContext{}, apperrors.Forbidden("privileged role required")
	}
	if !slices.Contains(g.allowlist, rc.Email) {
		return identity.RequestContext{}, apperrors.Forbidden("identity is not on the administrator allow-list")
	}
	return rc, nil
}

// Public returns the chain for public procedures: no guards, the possibly
// anonymous context flows through as-is.
func Public() Chain {
	return Chain{}
}

// Protected returns the chain for tenant-scoped procedures.
func Protected() Chain {
	return Chain{RequireAuthenticated(), EnforceTenantScope()}
}

// Privileged returns the chain for super-administrator procedures.
func Privileged(role string, allowlist []string) Chain {
	return Chain{RequireElevatedRole(role, allowlist), EnforceTenantScope()}
}
