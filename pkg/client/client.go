// Package client is a typed Go client for the ReleaseLayer API.
//
// Every method validates its input with the same rules the server applies, so invalid
// requests fail locally with validation.Errors before any network call. Non-2xx answers are
// returned as *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/releaselayer/backend/internal/validation"
)

// SDKKeyHeader carries the project key on widget endpoints.
const SDKKeyHeader = "X-SDK-Key"

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  validation.Errors
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("releaselayer: status %d", e.Status)
	}
	return fmt.Sprintf("releaselayer: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one ReleaseLayer deployment.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	sdkKey  string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token used on dashboard endpoints.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithSDKKey sets the project key used on widget endpoints.
func WithSDKKey(key string) Option {
	return func(c *Client) { c.sdkKey = key }
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL, e.g. "https://api.releaselayer.app".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data   json.RawMessage   `json:"data"`
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields"`
}

// validated runs parse over the JSON form of in and returns the normalized body to send.
func validated[T any](in T, parse func([]byte) (T, error)) ([]byte, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out, err := parse(raw)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return body, nil
}

type auth int

const (
	authToken auth = iota
	authSDK
)

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, a auth, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	switch a {
	case authToken:
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	case authSDK:
		if c.sdkKey != "" {
			req.Header.Set(SDKKeyHeader, c.sdkKey)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.Error
			apiErr.Fields = env.Fields
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func idPath(format string, ids ...fmt.Stringer) string {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, url.PathEscape(id.String()))
	}
	return fmt.Sprintf(format, args...)
}
