package server

import (
	"fmt"
	"net/http"

	"github.com/tenantgate/tenant-gate/internal/audit"
	"github.com/tenantgate/tenant-gate/internal/guard"
	"github.com/tenantgate/tenant-gate/internal/identity"
	"github.com/tenantgate/tenant-gate/internal/pkg/requestctx"
)

// ProcedureHandler handles one procedure invocation. The request context it
// receives has already passed the procedure's guard chain, so a protected
// handler may use the identity fields without presence checks. A returned
// error is normalized and written by the server.
type ProcedureHandler func(w http.ResponseWriter, r *http.Request, rc identity.RequestContext) error

// Procedure is a named operation composed of an ordered guard chain and a
// handler.
type Procedure struct {
	Name    string
	Guards  guard.Chain
	Handler ProcedureHandler
}

// handle runs the procedure: guard chain first, strictly in attachment
// order; the first rejection short-circuits and the handler never runs.
func (s *Server) handle(p Procedure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.errors.WriteError(w, r, fmt.Errorf("procedure %s panicked: %v", p.Name, rec))
			}
		}()

		rc := identity.FromContext(r.Context())

		narrowed, guardName, guardErr := p.Guards.Run(rc)
		if guardErr != nil {
			if s.bus != nil {
				_ = s.bus.Publish(r.Context(), s.auditTopic,
					audit.NewEvent(audit.TypeGuardDenied, source, audit.Decision{
						RequestID: requestctx.GetRequestID(r.Context()),
						Procedure: p.Name,
						Guard:     guardName,
						Code:      guardErr.Code,
						Method:    r.Method,
						Path:      r.URL.Path,
					}))
			}
			s.errors.WriteError(w, r, guardErr)
			return
		}

		if err := p.Handler(w, r, narrowed); err != nil {
			s.errors.WriteError(w, r, err)
		}
	}
}

// public builds a procedure with no guards.
func (s *Server) public(name string, h ProcedureHandler) http.HandlerFunc {
	return s.handle(Procedure{Name: name, Guards: guard.Public(), Handler: h})
}

// protected builds a procedure requiring an authenticated, tenant-scoped
// context.
func (s *Server) protected(name string, h ProcedureHandler) http.HandlerFunc {
	return s.handle(Procedure{Name: name, Guards: guard.Protected(), Handler: h})
}

// privileged builds a procedure requiring the elevated role plus allow-list
// membership.
func (s *Server) privileged(name string, h ProcedureHandler) http.HandlerFunc {
	return s.handle(Procedure{
		Name:    name,
		Guards:  guard.Privileged(s.privilegedRole, s.superAdmins),
		Handler: h,
	})
}
