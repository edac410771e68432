package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tenantgate/tenant-gate/internal/audit"
	"github.com/tenantgate/tenant-gate/internal/directory"
	"github.com/tenantgate/tenant-gate/internal/identity"
	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
	"github.com/tenantgate/tenant-gate/internal/pkg/logger"
	"github.com/tenantgate/tenant-gate/internal/ratelimit"
)

var testLog = logger.New("error", "text")

// mapVerifier maps bearer tokens to external subject IDs.
type mapVerifier map[string]string

func (v mapVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type testServerOptions struct {
	limit int
	store ratelimit.CounterStore
	bus   audit.Bus
}

// newTestServer assembles a fully wired pipeline over in-memory components.
func newTestServer(t *testing.T, opts testServerOptions) *Server {
	t.Helper()

	dir := directory.NewMemoryDirectory()
	dir.Put("ext-member", directory.Record{
		SubjectID: "subj-member",
		TenantID:  "tenant-1",
		Email:     "member@example.com",
		Role:      "member",
	})
	dir.Put("ext-admin", directory.Record{
		SubjectID: "subj-admin",
		TenantID:  "tenant-1",
		Email:     "root@example.com",
		Role:      "admin",
	})
	dir.Put("ext-rogue", directory.Record{
		SubjectID: "subj-rogue",
		TenantID:  "tenant-1",
		Email:     "rogue@example.com",
		Role:      "admin",
	})

	verifier := mapVerifier{
		"member-token": "ext-member",
		"admin-token":  "ext-admin",
		"rogue-token":  "ext-rogue",
	}

	if opts.limit == 0 {
		opts.limit = 100
	}

	return &Server{
		cfg:    DefaultConfig(),
		log:    testLog,
		errors: apperrors.NewNormalizer(testLog, true),
		store:  opts.store,
		admitter: ratelimit.New(opts.store, ratelimit.Config{
			Limit:  opts.limit,
			Window: 60 * time.Second,
		}, testLog),
		resolver:       identity.NewResolver(verifier, dir, testLog),
		bus:            opts.bus,
		auditTopic:     audit.TopicDecisions,
		privilegedRole: "admin",
		superAdmins:    []string{"root@example.com"},
	}
}

func doRequest(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func TestPublicProcedure(t *testing.T) {
	handler := newTestServer(t, testServerOptions{store: ratelimit.NewMemoryStore()}).buildHandler()

	t.Run("anonymous", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/v1/whoami", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var body whoamiResponse
		json.NewDecoder(rec.Body).Decode(&body)
		if !body.Anonymous {
			t.Errorf("whoami = %+v, want anonymous", body)
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/v1/whoami", "member-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var body whoamiResponse
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Anonymous || body.SubjectID != "subj-member" {
			t.Errorf("whoami = %+v, want resolved identity", body)
		}
	})

	t.Run("invalid token degrades to anonymous", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/v1/whoami", "forged-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, public procedures never reject on credentials", rec.Code)
		}

		var body whoamiResponse
		json.NewDecoder(rec.Body).Decode(&body)
		if !body.Anonymous {
			t.Errorf("whoami = %+v, want anonymous", body)
		}
	})
}

func TestProtectedProcedure(t *testing.T) {
	bus := audit.NewMemoryBus()
	defer bus.Close()
	var denials []audit.Event
	bus.Subscribe(context.Background(), audit.TopicDecisions, func(_ context.Context, e audit.Event) error {
		denials = append(denials, e)
		return nil
	})

	handler := newTestServer(t, testServerOptions{
		store: ratelimit.NewMemoryStore(),
		bus:   bus,
	}).buildHandler()

	t.Run("anonymous rejected", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/v1/tenant/profile", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}

		body := decodeError(t, rec)
		if body.Error.Code != apperrors.CodeUnauthenticated {
			t.Errorf("code = %q, want UNAUTHENTICATED", body.Error.Code)
		}

		if len(denials) == 0 {
			t.Fatal("guard denial should publish an audit event")
		}
		dec := denials[len(denials)-1].Payload.(audit.Decision)
		if dec.Guard != "require_authenticated" || dec.Procedure != "tenant.profile" {
			t.Errorf("decision = %+v", dec)
		}
	})

	t.Run("invalid credential rejected like anonymous", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/v1/tenant/profile", "forged-token", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error.Code != apperrors.CodeUnauthenticated {
			t.Errorf("code = %q, want UNAUTHENTICATED", body.Error.Code)
		}
	})

	t.Run("authenticated admitted with full profile", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/v1/tenant/profile", "member-token", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var body tenantProfileResponse
		json.NewDecoder(rec.Body).Decode(&body)
		if body.SubjectID == "" || body.TenantID == "" || body.Email == "" || body.Role == "" {
			t.Errorf("profile = %+v, want every field present", body)
		}
	})
}

func TestPrivilegedProcedure(t *testing.T) {
	handler := newTestServer(t, testServerOptions{store: ratelimit.NewMemoryStore()}).buildHandler()

	t.Run("allow-listed admin accepted", func(t *testing.T) {
		rec := doRequest(handler, http.MethodPost, "/v1/admin/tenants/purge", "admin-token",
			`{"tenant_id":"tenant-1","dry_run":true}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}

		var body purgeResponse
		json.NewDecoder(rec.Body).Decode(&body)
		if !body.Accepted || !body.DryRun {
			t.Errorf("purge = %+v", body)
		}
	})

	t.Run("admin role without allow-list membership rejected", func(t *testing.T) {
		rec := doRequest(handler, http.MethodPost, "/v1/admin/tenants/purge", "rogue-token", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error.Code != apperrors.CodeForbidden {
			t.Errorf("code = %q, want FORBIDDEN", body.Error.Code)
		}
	})

	t.Run("plain member rejected", func(t *testing.T) {
		rec := doRequest(handler, http.MethodPost, "/v1/admin/tenants/purge", "member-token", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error.Code != apperrors.CodeForbidden {
			t.Errorf("code = %q, want FORBIDDEN", body.Error.Code)
		}
	})

	t.Run("anonymous rejected as unauthenticated", func(t *testing.T) {
		// No identity present at all: that is an authentication failure,
		// never FORBIDDEN.
		rec := doRequest(handler, http.MethodPost, "/v1/admin/tenants/purge", "", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error.Code != apperrors.CodeUnauthenticated {
			t.Errorf("code = %q, want UNAUTHENTICATED", body.Error.Code)
		}
	})

	t.Run("malformed body uses the error envelope", func(t *testing.T) {
		rec := doRequest(handler, http.MethodPost, "/v1/admin/tenants/purge", "admin-token", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error.Code != apperrors.CodeValidation {
			t.Errorf("code = %q, want VALIDATION", body.Error.Code)
		}
		if body.Error.Message != "invalid JSON body" {
			t.Errorf("message = %q", body.Error.Message)
		}
	})
}

func TestRateLimitPipeline(t *testing.T) {
	handler := newTestServer(t, testServerOptions{
		store: ratelimit.NewMemoryStore(),
		limit: 3,
	}).buildHandler()

	for i := 1; i <= 3; i++ {
		rec := doRequest(handler, http.MethodGet, "/v1/whoami", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "3" {
			t.Errorf("request %d X-RateLimit-Limit = %q, want 3", i, got)
		}
	}

	rec := doRequest(handler, http.MethodGet, "/v1/whoami", "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request over limit status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	body := decodeError(t, rec)
	if body.Error.RetryAfter != 60 {
		t.Errorf("retryAfter = %d, want 60", body.Error.RetryAfter)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	// No counter store at all: every request is admitted and no quota
	// headers appear.
	handler := newTestServer(t, testServerOptions{limit: 1}).buildHandler()

	for i := 0; i < 20; i++ {
		rec := doRequest(handler, http.MethodGet, "/v1/whoami", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want fail-open 200", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "" {
			t.Fatalf("degraded admission carries header X-RateLimit-Limit=%q", got)
		}
	}
}

func TestPreflightExemptFromQuota(t *testing.T) {
	// CORS answers OPTIONS before the rate limiter runs; preflights carry no
	// credential and never consume quota.
	handler := newTestServer(t, testServerOptions{
		store: ratelimit.NewMemoryStore(),
		limit: 1,
	}).buildHandler()

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/v1/whoami", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("preflight %d status = %d, want 204", i, rec.Code)
		}
	}

	rec := doRequest(handler, http.MethodGet, "/v1/whoami", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status after preflights = %d, want 200 (quota untouched)", rec.Code)
	}
}

func TestRequestIDAttached(t *testing.T) {
	handler := newTestServer(t, testServerOptions{store: ratelimit.NewMemoryStore()}).buildHandler()

	rec := doRequest(handler, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestHandlerPanicIsNormalized(t *testing.T) {
	s := newTestServer(t, testServerOptions{store: ratelimit.NewMemoryStore()})

	h := s.public("boom", func(http.ResponseWriter, *http.Request, identity.RequestContext) error {
		panic("unexpected")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error.Message != "internal server error" {
		t.Errorf("message = %q, want sanitized", body.Error.Message)
	}
}

func TestHandlerErrorIsNormalized(t *testing.T) {
	s := newTestServer(t, testServerOptions{store: ratelimit.NewMemoryStore()})

	h := s.public("fail", func(http.ResponseWriter, *http.Request, identity.RequestContext) error {
		return errors.New("database exploded: credentials=hunter2")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeError(t, rec)
	if strings.Contains(body.Error.Message, "hunter2") {
		t.Error("internal detail leaked to the client")
	}
}
