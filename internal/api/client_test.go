package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/ratelimit"
)

// newTestClient starts handler on an httptest server and returns a client
// pointed at it with retries disabled.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL + "/starexec"
	cfg.APIKey = "test-key"

	client, err := NewClient(cfg, WithRetry(0, time.Millisecond, time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// TestNewClientRejectsEmptyServerURL verifies that NewClient fails with a clear
// error instead of creating a client that fails every request.
func TestNewClientRejectsEmptyServerURL(t *testing.T) {
	cfg := &config.Config{
		ServerURL: "",
		APIKey:    "test-key",
		ProxyMode: "no-proxy",
	}

	_, err := NewClient(cfg)
	if err == nil {
		t.Fatal("NewClient() should return error for empty server URL")
	}
	if !strings.Contains(err.Error(), "server URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'server URL is empty'", err.Error())
	}
}

func TestNewClientAcceptsValidServerURL(t *testing.T) {
	cfg := &config.Config{
		ServerURL: "https://www.starexec.org/starexec/",
		APIKey:    "test-key",
		ProxyMode: "no-proxy",
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	if client.BaseURL() != "https://www.starexec.org/starexec" {
		t.Errorf("BaseURL() = %q, trailing slash should be trimmed", client.BaseURL())
	}
}

func TestNewClientRejectsUnknownProxyMode(t *testing.T) {
	cfg := &config.Config{ServerURL: "https://example.org", ProxyMode: "carrier-pigeon"}
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("NewClient() should fail for an unsupported proxy mode")
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	if err := client.PauseJob(context.Background(), 42); err != nil {
		t.Fatalf("PauseJob() error = %v", err)
	}

	if gotPath != "/starexec/services/pause/job/42" {
		t.Errorf("path = %q", gotPath)
	}
	if got.Get("Authorization") != "Token test-key" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if !strings.HasPrefix(got.Get("User-Agent"), "jobview/") {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got.Get("Content-Type"))
	}
	if client.CallCount(ratelimit.ScopeAction) != 1 {
		t.Errorf("action calls = %d, want 1", client.CallCount(ratelimit.ScopeAction))
	}
}

func TestThrottledResponseSetsCooldown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListJobSpaces(context.Background(), 1, 0)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("ListJobSpaces() error = %v, want 429 StatusError", err)
	}

	limiter := client.Limits().ScopeLimiter(ratelimit.ScopeRead)
	if limiter.CooldownRemaining() <= time.Second {
		t.Errorf("CooldownRemaining() = %v, want about 2s", limiter.CooldownRemaining())
	}
	if tokens := limiter.GetCurrentTokens(); tokens > 1 {
		t.Errorf("bucket should be drained after 429, has %.2f tokens", tokens)
	}
}

// Without Retry-After the default cooldown applies, and requests of the same
// scope wait for it instead of reaching the server.
func TestThrottledResponseHoldsBackNextRequest(t *testing.T) {
	var hits int
	var mu sync.Mutex
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.ListJobSpaces(context.Background(), 1, 0); err == nil {
		t.Fatal("ListJobSpaces() should fail with 429")
	}
	limiter := client.Limits().ScopeLimiter(ratelimit.ScopeRead)
	if cd := limiter.CooldownRemaining(); cd <= ratelimit.DefaultCooldown-time.Second {
		t.Errorf("CooldownRemaining() = %v, want about %v", cd, ratelimit.DefaultCooldown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.ListJobSpaces(ctx, 1, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second ListJobSpaces() error = %v, want DeadlineExceeded", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("server saw %d requests, want 1", hits)
	}
}

func TestServerErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"code":7,"message":"job is not paused"}`))
	})

	err := client.ResumeJob(context.Background(), 3)
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("ResumeJob() error = %v, want ServerError", err)
	}
	if se.Message != "job is not paused" {
		t.Errorf("Message = %q", se.Message)
	}
	if code, ok := ServerCode(err); !ok || code != 7 {
		t.Errorf("ServerCode() = %d, %v", code, ok)
	}
}

func TestStatusErrorNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	err := client.ClearStatsCache(context.Background(), 9)
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestCancelledContextStopsBeforeRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	limiter := client.Limits().ScopeLimiter(ratelimit.ScopeRead)
	limiter.SetCooldown(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.ListJobSpaces(ctx, 1, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("request should not be sent while the limiter is blocked")
	}
}
