package identity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/tenantgate/tenant-gate/internal/directory"
	"github.com/tenantgate/tenant-gate/internal/pkg/logger"
)

// stubVerifier maps exact tokens to external subject IDs.
type stubVerifier struct {
	tokens map[string]string
}

func (v *stubVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func newTestResolver() (*Resolver, *directory.MemoryDirectory) {
	dir := directory.NewMemoryDirectory()
	dir.Put("ext-1", directory.Record{
		SubjectID: "subj-1",
		TenantID:  "tenant-1",
		Email:     "user@example.com",
		Role:      "member",
	})
	dir.Put("ext-gone", directory.Record{
		SubjectID: "subj-2",
		TenantID:  "tenant-1",
		Email:     "gone@example.com",
		Role:      "member",
		Deleted:   true,
	})

	verifier := &stubVerifier{tokens: map[string]string{
		"good-token": "ext-1",
		"gone-token": "ext-gone",
		"lost-token": "ext-unknown",
	}}

	return NewResolver(verifier, dir, logger.New("error", "text")), dir
}

func TestResolve_NoCredential(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"non-bearer scheme", "Basic dXNlcjpwYXNz"},
		{"bearer with no value", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := r.Resolve(context.Background(), tt.header)
			if !rc.Anonymous() {
				t.Errorf("Resolve(%q) = %+v, want anonymous", tt.header, rc)
			}
		})
	}
}

func TestResolve_InvalidCredentialBehavesLikeNone(t *testing.T) {
	r, _ := newTestResolver()

	withNone := r.Resolve(context.Background(), "")
	withBad := r.Resolve(context.Background(), "Bearer not-a-real-token")

	if withBad != withNone {
		t.Errorf("invalid credential resolved to %+v, want identical to no credential %+v", withBad, withNone)
	}
}

func TestResolve_Success(t *testing.T) {
	r, _ := newTestResolver()

	rc := r.Resolve(context.Background(), "Bearer good-token")

	if rc.SubjectID != "subj-1" || rc.TenantID != "tenant-1" {
		t.Errorf("Resolve() = %+v, want subj-1/tenant-1", rc)
	}
	if rc.Email != "user@example.com" || rc.Role != "member" {
		t.Errorf("Resolve() = %+v, want full record fields", rc)
	}
	if !rc.Authenticated() {
		t.Error("resolved context should be authenticated")
	}
}

func TestResolve_DeletedSubject(t *testing.T) {
	r, _ := newTestResolver()

	rc := r.Resolve(context.Background(), "Bearer gone-token")
	if !rc.Anonymous() {
		t.Errorf("deleted subject should resolve to anonymous, got %+v", rc)
	}
}

func TestResolve_UnknownSubject(t *testing.T) {
	r, _ := newTestResolver()

	rc := r.Resolve(context.Background(), "Bearer lost-token")
	if !rc.Anonymous() {
		t.Errorf("subject missing from directory should resolve to anonymous, got %+v", rc)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r, _ := newTestResolver()

	first := r.Resolve(context.Background(), "Bearer good-token")
	second := r.Resolve(context.Background(), "Bearer good-token")

	if first != second {
		t.Errorf("resolving twice gave %+v then %+v, want field-for-field identical", first, second)
	}
}

func TestResolve_TraceNeverLogsCredential(t *testing.T) {
	var buf bytes.Buffer
	log := &logger.Logger{Logger: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))}

	dir := directory.NewMemoryDirectory()
	dir.Put("ext-1", directory.Record{
		SubjectID: "subj-1",
		TenantID:  "tenant-1",
		Email:     "user@example.com",
		Role:      "member",
	})
	verifier := &stubVerifier{tokens: map[string]string{"valid-bearer-credential": "ext-1"}}
	r := NewResolver(verifier, dir, log)

	r.Resolve(context.Background(), "Bearer valid-bearer-credential")
	r.Resolve(context.Background(), "Bearer forged-bearer-credential")

	output := buf.String()
	if !strings.Contains(output, `"subject_id":"subj-1"`) || !strings.Contains(output, `"tenant_id":"tenant-1"`) {
		t.Errorf("identity trace should carry subject and tenant, got: %s", output)
	}
	if strings.Contains(output, "valid-bearer-credential") || strings.Contains(output, "forged-bearer-credential") {
		t.Errorf("raw credential leaked into the log: %s", output)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"}, // scheme is case-insensitive
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}

	for _, tt := range tests {
		if got := bearerToken(tt.in); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequestContextInvariants(t *testing.T) {
	if !(RequestContext{}).Anonymous() {
		t.Error("zero value should be anonymous")
	}
	if (RequestContext{SubjectID: "s"}).Authenticated() {
		t.Error("subject without tenant is not authenticated")
	}
	if !(RequestContext{SubjectID: "s", TenantID: "t"}).Authenticated() {
		t.Error("subject with tenant is authenticated")
	}
}

func TestContextRoundTrip(t *testing.T) {
	rc := RequestContext{SubjectID: "s", TenantID: "t"}
	ctx := NewContext(context.Background(), rc)

	if got := FromContext(ctx); got != rc {
		t.Errorf("FromContext() = %+v, want %+v", got, rc)
	}
	if got := FromContext(context.Background()); !got.Anonymous() {
		t.Errorf("FromContext() without value = %+v, want anonymous", got)
	}
}
