package revocation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client speaks the Server wire contract. It satisfies the same
// interface as Store, so the engine does not care whether the authority
// is linked in or remote.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the authority at baseURL. The timeout
// bounds each request; keep it short, resolve sits on this path.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// IsRevoked asks the authority whether digest is currently revoked.
// nowMs is accepted for interface symmetry; the authority's clock is
// the one that counts.
func (c *Client) IsRevoked(ctx context.Context, digest string, nowMs int64) (bool, error) {
	_ = nowMs
	u := c.baseURL + "/check?tokenHash=" + url.QueryEscape(digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: check returned status %d", ErrUnavailable, resp.StatusCode)
	}
	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body.Revoked, nil
}

// Revoke records a revocation for digest until untilMs.
func (c *Client) Revoke(ctx context.Context, digest string, untilMs int64) error {
	payload, err := json.Marshal(revokeRequest{TokenHash: digest, ExpiresAtMs: float64(untilMs)})
	if err != nil {
		return fmt.Errorf("encode revoke request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/revoke", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var body revokeResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		if decodeErr == nil && body.Error != "" {
			return fmt.Errorf("revoke rejected: %s", body.Error)
		}
		return fmt.Errorf("revoke rejected: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: revoke returned status %d", ErrUnavailable, resp.StatusCode)
	case decodeErr != nil:
		return fmt.Errorf("%w: %v", ErrUnavailable, decodeErr)
	case !body.OK:
		return fmt.Errorf("%w: revoke not acknowledged", ErrUnavailable)
	}
	return nil
}
