// Package directory provides read-only access to the user/tenant directory.
package directory

import (
	"context"
)

// Record is one directory entry keyed by the identity issuer's external
// subject ID.
type Record struct {
	SubjectID string `json:"subject_id"`
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Deleted   bool   `json:"deleted"`
}

// Directory looks up subjects by their external identifier. Implementations
// must return ErrNotFound for unknown subjects rather than a nil record.
type Directory interface {
	FindByExternalID(ctx context.Context, externalID string) (*Record, error)
}
