// Package broker obtains short-lived live-session credentials from the
// session broker. The broker keeps the long-lived API key server-side and
// hands out single-use tokens.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.dubash.app/dubash/internal/types"
)

// ErrCredential indicates the broker refused to issue a credential, or the
// one it issued is unusable. Not retryable with the same request state;
// the caller must mint afresh.
var ErrCredential = errors.New("broker: credential request rejected")

// Client talks to one broker endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a broker client for the given endpoint URL.
func NewClient(url string) *Client {
	return &Client{
		url: url,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Mint requests one single-use session credential. The grant must be
// consumed by exactly one connect attempt, promptly.
func (c *Client) Mint(ctx context.Context, req types.SessionRequest) (types.Grant, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.Grant{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.Grant{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return types.Grant{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Grant{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Grant{}, fmt.Errorf("%w: status %d: %s", ErrCredential, resp.StatusCode, data)
	}

	var grant types.Grant
	if err := json.Unmarshal(data, &grant); err != nil {
		return types.Grant{}, fmt.Errorf("%w: decode grant: %v", ErrCredential, err)
	}
	if grant.Token == "" {
		return types.Grant{}, fmt.Errorf("%w: empty token", ErrCredential)
	}
	return grant, nil
}
