package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RemoteVerifier validates tokens against the token issuer service.
type RemoteVerifier struct {
	baseURL string
	client  *http.Client
}

// NewRemoteVerifier creates a verifier calling the issuer at baseURL.
func NewRemoteVerifier(baseURL string) (*RemoteVerifier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	return &RemoteVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	SubjectID string `json:"subject_id"`
}

// Verify posts the token to the issuer's verification endpoint.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return "", fmt.Errorf("encoding verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling issuer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("issuer rejected token: status %d", resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return "", fmt.Errorf("decoding verify response: %w", err)
	}
	if vr.SubjectID == "" {
		return "", fmt.Errorf("issuer returned empty subject")
	}

	return vr.SubjectID, nil
}
