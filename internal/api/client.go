// Package api is the client for the job server's REST services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/http"
	"github.com/starexec/jobview/internal/logging"
	"github.com/starexec/jobview/internal/ratelimit"
	"github.com/starexec/jobview/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("retry: " + msg)
}

// apiMetrics tracks API usage statistics
type apiMetrics struct {
	sync.Mutex
	totalCalls    int64
	callsByScope  map[ratelimit.Scope]int64
	windowStart   time.Time
	callsInWindow int64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry overrides the retry policy of the underlying retryablehttp client.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryMax = retryMax
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithRegistry replaces the rate limit registry, for sharing limiters between clients.
func WithRegistry(reg *ratelimit.Registry) Option {
	return func(c *Client) { c.limits = reg }
}

// Client talks to one job server.
type Client struct {
	httpClient *nethttp.Client
	config     *config.Config
	baseURL    string
	apiKey     string
	limits     *ratelimit.Registry
	metrics    *apiMetrics
	logger     *logging.Logger

	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, errors.New("server URL is empty: set it with --url, JOBVIEW_URL or the config file")
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	c := &Client{
		config:       cfg,
		baseURL:      strings.TrimSuffix(cfg.ServerURL, "/"),
		apiKey:       cfg.APIKey,
		limits:       ratelimit.NewRegistry(),
		logger:       logging.Nop(),
		retryMax:     constants.RetryMax,
		retryWaitMin: constants.RetryWaitMin,
		retryWaitMax: constants.RetryWaitMax,
		metrics: &apiMetrics{
			callsByScope: make(map[ratelimit.Scope]int64),
			windowStart:  time.Now(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = c.retryMax
	retryClient.RetryWaitMin = c.retryWaitMin
	retryClient.RetryWaitMax = c.retryWaitMax
	retryClient.Logger = &retryLogger{logger: c.logger}
	// Non-2xx responses are returned as-is so the caller sees the status and body.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.httpClient = retryClient.StandardClient()

	return c, nil
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Limits returns the rate limit registry shared by all requests of this client.
func (c *Client) Limits() *ratelimit.Registry {
	return c.limits
}

// doRequest performs an HTTP request with authentication and rate limiting.
// form, when non-nil, is sent url-encoded; for GET it becomes the query string.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values) (*nethttp.Response, error) {
	limiter, scope := c.limits.Limiter(method, path)
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}
	c.track(scope)

	target := c.baseURL + path
	var body io.Reader
	if form != nil {
		if method == nethttp.MethodGet {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + form.Encode()
		} else {
			body = strings.NewReader(form.Encode())
		}
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Err(err).Msg("request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		cooldown := ratelimit.DefaultCooldown
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				cooldown = time.Duration(secs) * time.Second
			}
		}
		limiter.Drain()
		limiter.SetCooldown(cooldown)
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Str("scope", c.limits.ScopeDisplayString(scope)).
			Dur("cooldown", cooldown).
			Msg("throttled by job server")
	}

	return resp, nil
}

func (c *Client) track(scope ratelimit.Scope) {
	c.metrics.Lock()
	defer c.metrics.Unlock()
	c.metrics.totalCalls++
	c.metrics.callsByScope[scope]++
	c.metrics.callsInWindow++

	if elapsed := time.Since(c.metrics.windowStart); elapsed >= 30*time.Second {
		c.logger.Debug().
			Float64("req_per_sec", float64(c.metrics.callsInWindow)/elapsed.Seconds()).
			Int64("total", c.metrics.totalCalls).
			Msg("api usage")
		c.metrics.callsInWindow = 0
		c.metrics.windowStart = time.Now()
	}
}

// CallCount returns how many requests were sent for scope.
func (c *Client) CallCount(scope ratelimit.Scope) int64 {
	c.metrics.Lock()
	defer c.metrics.Unlock()
	return c.metrics.callsByScope[scope]
}

// decodeResponse checks the status, detects a refusal envelope and decodes the
// body into v. v may be nil when only success matters.
func decodeResponse(resp *nethttp.Response, what string, v interface{}) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", what, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: what, StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	if err := checkEnvelope(what, data); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", what, err)
	}
	return nil
}

// checkEnvelope returns a ServerError when data is an object carrying success=false.
func checkEnvelope(what string, data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var probe struct {
		Success *bool  `json:"success"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Success == nil || *probe.Success {
		return nil
	}
	return &ServerError{Op: what, Code: probe.Code, Message: probe.Message}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
