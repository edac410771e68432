package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tenantgate/tenant-gate/internal/config"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

func TestJWTVerifier_Valid(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	raw := signToken(t, testSecret, jwt.MapClaims{
		"sub": "ext-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	subject, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "ext-1" {
		t.Errorf("subject = %q, want ext-1", subject)
	}
}

func TestJWTVerifier_Invalid(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "ext-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, []byte("other-secret"), jwt.MapClaims{
		"sub": "ext-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noSubject := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"expired", expired},
		{"wrong key", wrongKey},
		{"no subject", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Malformed input must fail verification, never panic.
			if _, err := v.Verify(context.Background(), tt.token); err == nil {
				t.Errorf("Verify(%q) should fail", tt.name)
			}
		})
	}
}

func TestNewVerifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AuthConfig
		wantErr bool
	}{
		{"jwt with secret", config.AuthConfig{Mode: "jwt", JWTSecret: "s"}, false},
		{"jwt without secret", config.AuthConfig{Mode: "jwt"}, true},
		{"remote with URL", config.AuthConfig{Mode: "remote", IssuerURL: "http://issuer:8081"}, false},
		{"remote without URL", config.AuthConfig{Mode: "remote"}, true},
		{"unknown mode", config.AuthConfig{Mode: "ldap"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVerifier(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewVerifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
