// Package backend provides a client for the survey analysis backend API
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/interfaces"
)

const (
	DefaultBaseURL   = "http://localhost:8000"
	DefaultTimeout   = 60 * time.Second
	DefaultRateLimit = 10 // requests per second

	authPrefix = "/api/v1/auth"
)

// Client implements interfaces.BackendClient
type Client struct {
	baseURL    string
	creds      interfaces.CredentialProvider
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time

	// refreshMu serialises token refreshes across concurrent requests.
	refreshMu sync.Mutex
}

var _ interfaces.BackendClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// withClock overrides the time source used for token expiry checks
func withClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new backend client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, creds interfaces.CredentialProvider, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// payload is a request body that can be replayed on retry
type payload struct {
	data        []byte
	contentType string
}

func jsonPayload(v interface{}) (*payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return &payload{data: data, contentType: "application/json"}, nil
}

// isSessionless reports endpoints that must never trigger a token refresh
func isSessionless(path string) bool {
	switch path {
	case authPrefix + "/login", authPrefix + "/register", authPrefix + "/refresh", authPrefix + "/logout":
		return true
	}
	return false
}

// send performs a rate-limited request with bearer auth, proactive refresh of
// an expired access token, and one refresh-and-retry on 401.
func (c *Client) send(ctx context.Context, method, path string, body *payload) ([]byte, error) {
	requestID := uuid.New().String()
	sessionless := isSessionless(path)

	if !sessionless {
		if err := c.refreshIfExpired(ctx); err != nil {
			return nil, err
		}
	}

	status, data, usedToken, err := c.roundTrip(ctx, method, path, body, requestID)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && !sessionless {
		if err := c.refresh(ctx, usedToken); err != nil {
			return nil, err
		}
		status, data, _, err = c.roundTrip(ctx, method, path, body, requestID)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.expireSession()
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, newAPIError(status, data, path).Detail)
		}
	}

	if status < 200 || status >= 300 {
		return nil, newAPIError(status, data, path)
	}
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body *payload, requestID string) (int, []byte, string, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, "", fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	token := ""
	if c.creds != nil {
		token = c.creds.Tokens().Access
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, token, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, token, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend API request")

	return resp.StatusCode, data, token, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	data, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(data, result)
}

func (c *Client) postJSON(ctx context.Context, path string, body, result interface{}) error {
	p, err := jsonPayload(body)
	if err != nil {
		return err
	}
	data, err := c.send(ctx, http.MethodPost, path, p)
	if err != nil {
		return err
	}
	return decode(data, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.send(ctx, http.MethodDelete, path, nil)
	return err
}

func decode(data []byte, result interface{}) error {
	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
