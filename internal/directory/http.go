package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when a subject has no directory record.
var ErrNotFound = errors.New("directory: subject not found")

// HTTPDirectory is a directory client backed by the directory service's
// HTTP API.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates a directory client for the given base URL.
func NewHTTPDirectory(baseURL string, timeout time.Duration) (*HTTPDirectory, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("directory URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid directory URL: %w", err)
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FindByExternalID fetches the record for one external subject ID.
func (d *HTTPDirectory) FindByExternalID(ctx context.Context, externalID string) (*Record, error) {
	u := fmt.Sprintf("%s/v1/subjects/%s", d.baseURL, url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("directory lookup: unexpected status %d", resp.StatusCode)
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding directory record: %w", err)
	}

	return &rec, nil
}
