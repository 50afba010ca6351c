// Package transport provides the HTTP client shared by every network
// collaborator of the harvester: a bounded connection pool, a response size
// limit and a small number of retries on connection-level failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxResponseSize limits response bodies to prevent memory exhaustion.
const DefaultMaxResponseSize = 16 * 1024 * 1024

// DefaultUserAgent identifies the harvester to remote hosts.
const DefaultUserAgent = "oshi-krawl"

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is an HTTP client with connection-level retry.
type Client struct {
	httpClient      *http.Client
	retryConfig     RetryConfig
	userAgent       string
	bearerToken     string
	maxResponseSize int64
	logger          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// WithBearerToken adds an Authorization header to every request.
func WithBearerToken(token string) Option {
	return func(client *Client) {
		client.bearerToken = token
	}
}

// WithMaxResponseSize overrides the response body limit.
func WithMaxResponseSize(n int64) Option {
	return func(client *Client) {
		client.maxResponseSize = n
	}
}

// NewHTTPClient builds an http.Client whose connection pool per host is fixed
// to poolSize. jar may be nil.
func NewHTTPClient(poolSize int, timeout time.Duration, jar http.CookieJar) *http.Client {
	if poolSize <= 0 {
		poolSize = 1
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          poolSize * 4,
		MaxIdleConnsPerHost:   poolSize,
		MaxConnsPerHost:       poolSize,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return nil
		},
	}
}

// New creates a client. Without options it uses a pool of four connections
// per host and three connection-level retries.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:      NewHTTPClient(4, 60*time.Second, nil),
		retryConfig:     DefaultRetryConfig(),
		userAgent:       DefaultUserAgent,
		maxResponseSize: DefaultMaxResponseSize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do executes the request built by newReq, retrying only when the connection
// itself fails. The returned response may carry any status code.
func (c *Client) Do(ctx context.Context, newReq RequestFunc) (*Response, error) {
	attempts := c.retryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *RequestError
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.doOnce(ctx, newReq)
		if err == nil {
			return resp, nil
		}
		err.Attempts = attempt
		lastErr = err
		if !err.Retryable {
			return nil, err
		}

		if attempt < attempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, newReq RequestFunc) (*Response, *RequestError) {
	req, err := newReq(ctx)
	if err != nil {
		return nil, requestError(nil, false, fmt.Errorf("create request: %w", err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.bearerToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, requestError(req, ctx.Err() == nil, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, requestError(req, true, fmt.Errorf("read response body: %w", err))
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, requestError(req, false, fmt.Errorf("response exceeds %d bytes", c.maxResponseSize))
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// calculateBackoff computes exponential backoff duration with jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// +/- 25%
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		return req, nil
	})
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	})
}

// PostForm issues a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	encoded := form.Encode()
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// PostJSON marshals payload and POSTs it as application/json.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, header http.Header) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, requestError(nil, false, fmt.Errorf("marshal request: %w", err))
	}
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
