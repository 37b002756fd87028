// Package connector implements the per-system adapters that pull and push
// data against the external REST APIs (ERP, B2B portal, B2C storefront),
// normalize records through the mapper, and emit local domain events the
// orchestrator routes.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	syncErrors "github.com/dulcera/syncbridge/errors"
	"github.com/dulcera/syncbridge/logging"
	"github.com/dulcera/syncbridge/retry"
)

// Limits defines response size limits for connector HTTP calls
type Limits struct {
	MaxBodyBytes int64
}

// Client is the authenticated HTTP client scoped to one external system
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	apiKey  string
	bearer  string
	limits  Limits
	retry   *retry.Executor
	logger  *logging.Logger
}

// ClientOption configures a Client using the functional options pattern
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) {
		c.http = cl
	}
}

// WithAPIKey authenticates requests with an X-API-Key header
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBearerToken authenticates requests with a bearer Authorization header
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.bearer = token
	}
}

// WithLimits sets response size limits
func WithLimits(l Limits) ClientOption {
	return func(c *Client) {
		c.limits = l
	}
}

// WithRetry sets the retry executor used for every request
func WithRetry(e *retry.Executor) ClientOption {
	return func(c *Client) {
		c.retry = e
	}
}

// WithLogger sets the client logger
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for one external system
func NewClient(name, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limits:  Limits{MaxBodyBytes: 8 << 20},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.Default()
	}
	c.logger = c.logger.WithComponent(logging.Component("connector/" + name))
	if c.retry == nil {
		c.retry = retry.APIProfile(c.logger)
	}

	return c
}

// getJSON issues a GET and decodes the response into out, retrying
// transient failures per the configured executor.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.retry.Execute(ctx, c.name+" GET "+path, func(ctx context.Context) error {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return syncErrors.NewWithComponent(syncErrors.OpConnectorSync, c.name, err)
		}
		return c.do(req, out)
	})
}

// sendJSON issues a POST or PUT with a JSON body
func (c *Client) sendJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return syncErrors.NewWithComponent(syncErrors.OpConnectorPush, c.name, err)
	}

	return c.retry.Execute(ctx, c.name+" "+method+" "+path, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return syncErrors.NewWithComponent(syncErrors.OpConnectorPush, c.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, out)
	})
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return syncErrors.NewNetworkError(syncErrors.OpConnectorSync, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.limits.MaxBodyBytes))
	if err != nil {
		return syncErrors.NewNetworkError(syncErrors.OpConnectorSync, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return syncErrors.FromHTTPStatus(syncErrors.OpConnectorSync, c.name, resp.StatusCode, truncate(string(body), 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return syncErrors.NewWithComponent(syncErrors.OpConnectorSync, c.name,
			fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// Ping checks the system's health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil, nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
