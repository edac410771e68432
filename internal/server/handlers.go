package server

import (
	"encoding/json"
	"net/http"

	"github.com/tenantgate/tenant-gate/internal/identity"
	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.public("health", s.handleHealth))
	mux.HandleFunc("GET /v1/whoami", s.public("whoami", s.handleWhoami))
	mux.HandleFunc("GET /v1/tenant/profile", s.protected("tenant.profile", s.handleTenantProfile))
	mux.HandleFunc("POST /v1/admin/tenants/purge", s.privileged("admin.tenants.purge", s.handleAdminPurge))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ identity.RequestContext) error {
	return writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

// whoamiResponse reports the caller's resolved identity. All fields except
// anonymous are omitted for anonymous callers.
type whoamiResponse struct {
	Anonymous bool   `json:"anonymous"`
	SubjectID string `json:"subject_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

func (s *Server) handleWhoami(w http.ResponseWriter, _ *http.Request, rc identity.RequestContext) error {
	return writeJSON(w, http.StatusOK, whoamiResponse{
		Anonymous: rc.Anonymous(),
		SubjectID: rc.SubjectID,
		TenantID:  rc.TenantID,
		Email:     rc.Email,
		Role:      rc.Role,
	})
}

// tenantProfileResponse is the caller's tenant-scoped profile. Every field is
// always present: the protected guard chain guarantees a fully narrowed
// context before the handler runs.
type tenantProfileResponse struct {
	SubjectID string `json:"subject_id"`
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func (s *Server) handleTenantProfile(w http.ResponseWriter, _ *http.Request, rc identity.RequestContext) error {
	return writeJSON(w, http.StatusOK, tenantProfileResponse{
		SubjectID: rc.SubjectID,
		TenantID:  rc.TenantID,
		Email:     rc.Email,
		Role:      rc.Role,
	})
}

type purgeRequest struct {
	TenantID string `json:"tenant_id"`
	DryRun   bool   `json:"dry_run"`
}

type purgeResponse struct {
	TenantID string `json:"tenant_id"`
	DryRun   bool   `json:"dry_run"`
	Accepted bool   `json:"accepted"`
}

func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request, rc identity.RequestContext) error {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.New(apperrors.CodeValidation, "invalid JSON body")
	}
	if req.TenantID == "" {
		req.TenantID = rc.TenantID
	}

	s.log.WithContext(r.Context()).Info("tenant purge requested",
		"tenant_id", req.TenantID,
		"dry_run", req.DryRun,
		"requested_by", rc.SubjectID,
	)

	return writeJSON(w, http.StatusAccepted, purgeResponse{
		TenantID: req.TenantID,
		DryRun:   req.DryRun,
		Accepted: true,
	})
}
