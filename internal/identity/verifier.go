package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tenantgate/tenant-gate/internal/config"
)

// TokenVerifier validates a bearer credential and returns the external
// subject ID it was issued for. Implementations must treat malformed input as
// a normal verification failure, never as a fault.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// NewVerifier creates a TokenVerifier based on the configuration.
func NewVerifier(cfg config.AuthConfig) (TokenVerifier, error) {
	switch cfg.Mode {
	case "jwt", "":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("jwt verifier requires a secret")
		}
		return NewJWTVerifier([]byte(cfg.JWTSecret)), nil

	case "remote":
		return NewRemoteVerifier(cfg.IssuerURL)

	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
}

// JWTVerifier verifies HMAC-signed tokens locally.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify parses and validates the token, returning its subject claim.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("verifying token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return subject, nil
}
