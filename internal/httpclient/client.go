// Package httpclient provides HTTP client functionality for platform lookups
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (1MB)
	MaxResponseSize = 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "boostsync/1.0"
)

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the response body.
	// Any status outside 2xx/3xx is returned as an *HTTPError.
	Get(ctx context.Context, url string) ([]byte, error)

	// Check performs an HTTP GET request and classifies it by status only.
	// The body is discarded unread, so its size never causes an error.
	Check(ctx context.Context, url string) error
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithAuthorization sets the Authorization header to "<scheme> <token>"
func WithAuthorization(scheme, token string) Option {
	return func(c *DefaultClient) {
		if scheme == "" {
			c.authorization = token
			return
		}
		c.authorization = scheme + " " + token
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *DefaultClient) {
		c.userAgent = ua
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client        *http.Client
	timeout       time.Duration
	authorization string
	userAgent     string
}

// NewDefaultClient creates a new default HTTP client with the specified timeout
// If timeout is 0, uses DefaultTimeout. Redirects are not followed; a 3xx
// response is returned to the caller as a success.
func NewDefaultClient(timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   timeout,
		userAgent: UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET request
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}

	// +1 to detect if limit exceeded
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nil
}

// Check performs an HTTP GET request without reading the body
func (c *DefaultClient) Check(ctx context.Context, url string) error {
	resp, err := c.do(ctx, url)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// do sends the request and returns the open response for 2xx/3xx statuses
func (c *DefaultClient) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}
	return resp, nil
}
