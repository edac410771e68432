package identity

import (
	"context"
	"strings"

	"github.com/tenantgate/tenant-gate/internal/directory"
	"github.com/tenantgate/tenant-gate/internal/pkg/logger"
	"github.com/tenantgate/tenant-gate/internal/pkg/security"
)

// Resolver turns an inbound credential into a RequestContext.
//
// Resolution never fails: every failure path degrades to the anonymous
// context, because anonymous traffic is an expected, common case and whether
// to reject is decided by the guards, not here. Failures are not errors to
// this layer and are not logged as such.
type Resolver struct {
	verifier  TokenVerifier
	directory directory.Directory
	log       *logger.Logger
}

// NewResolver creates a Resolver.
func NewResolver(verifier TokenVerifier, dir directory.Directory, log *logger.Logger) *Resolver {
	return &Resolver{
		verifier:  verifier,
		directory: dir,
		log:       log,
	}
}

// Resolve builds the RequestContext for one request from the raw
// Authorization header value. An absent or unverifiable credential yields the
// anonymous context.
func (r *Resolver) Resolve(ctx context.Context, authorization string) RequestContext {
	token := bearerToken(authorization)
	if token == "" {
		return RequestContext{}
	}

	externalID, err := r.verifier.Verify(ctx, token)
	if err != nil {
		// Invalid credentials behave exactly like no credentials. The raw
		// token is never logged, only its fingerprint.
		r.log.WithContext(ctx).Debug("credential failed verification",
			"credential", security.MaskCredential(token),
		)
		return RequestContext{}
	}

	rec, err := r.directory.FindByExternalID(ctx, externalID)
	if err != nil || rec.Deleted {
		return RequestContext{}
	}

	rc := RequestContext{
		SubjectID: rec.SubjectID,
		TenantID:  rec.TenantID,
		Email:     rec.Email,
		Role:      rec.Role,
	}

	// Identity trace only. The raw credential is never logged.
	r.log.WithContext(ctx).WithSubject(rc.SubjectID, rc.TenantID).Debug("resolved identity")

	return rc
}

// bearerToken extracts the credential from an Authorization header value.
// Returns empty string when the header is absent or not a bearer scheme.
func bearerToken(authorization string) string {
	if authorization == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authorization[len(prefix):])
}
