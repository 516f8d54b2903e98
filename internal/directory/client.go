package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Outcome classes for directory lookups. Not-found is an expected result,
// not an exceptional one; ErrUnavailable marks connectivity failures so
// callers can distinguish a dependency outage from a rejected credential.
var (
	ErrNotFound    = errors.New("user not found in directory")
	ErrConflict    = errors.New("user already exists in directory")
	ErrUnavailable = errors.New("directory service unavailable")
)

const maxResponseBytes = 1 << 20

// Client talks to the external user-directory service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a directory Client. The timeout bounds every call
// end to end, including connection establishment.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// envelope is the directory service's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// GetByEmail fetches a user record by email. Lookup is case-insensitive:
// the address is lowercased and trimmed before the request is built.
func (c *Client) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return c.get(ctx, "/api/user/by-email/"+url.PathEscape(email))
}

// GetByID fetches a user record by its directory id.
func (c *Client) GetByID(ctx context.Context, id string) (*User, error) {
	return c.get(ctx, "/api/user/"+url.PathEscape(id))
}

// GetByProviderID fetches a user record by its linked Google account id.
func (c *Client) GetByProviderID(ctx context.Context, providerID string) (*User, error) {
	return c.get(ctx, "/api/user/by-google-id/"+url.PathEscape(providerID))
}

// Create registers a new password-based user record. A duplicate email
// surfaces as ErrConflict.
func (c *Client) Create(ctx context.Context, u User) (*User, error) {
	return c.send(ctx, http.MethodPost, "/api/user", u)
}

// CreateOAuth registers a new user record backed by an OAuth identity.
func (c *Client) CreateOAuth(ctx context.Context, u User) (*User, error) {
	return c.send(ctx, http.MethodPost, "/api/user/google", u)
}

// Patch applies a partial update to an existing record, used to attach a
// provider id to an account during OAuth account linking.
func (c *Client) Patch(ctx context.Context, id string, patch UserPatch) (*User, error) {
	return c.send(ctx, http.MethodPatch, "/api/user/"+url.PathEscape(id), patch)
}

func (c *Client) get(ctx context.Context, path string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}
	return c.do(req)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*User, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding directory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*User, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrConflict
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding directory response: %w", err)
	}
	if !env.Success || len(env.Data) == 0 {
		return nil, ErrNotFound
	}

	var u User
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return nil, fmt.Errorf("decoding directory user: %w", err)
	}
	return &u, nil
}
