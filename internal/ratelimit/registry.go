package ratelimit

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Scope identifies a group of endpoints that share one token bucket.
type Scope string

const (
	// ScopeRead covers pagination, job space listings and graphs.
	ScopeRead Scope = "read"

	// ScopeAction covers job mutations and cache maintenance.
	ScopeAction Scope = "action"

	// ScopeDownload covers archive downloads.
	ScopeDownload Scope = "download"
)

// ScopeConfig holds the rate limit configuration for a single scope.
type ScopeConfig struct {
	Scope Scope
	Rate  float64 // requests per second
	Burst float64 // token bucket capacity
}

func scopeConfig(scope Scope) ScopeConfig {
	switch scope {
	case ScopeAction:
		return ScopeConfig{Scope: scope, Rate: ActionRatePerSec, Burst: ActionBurstCapacity}
	case ScopeDownload:
		return ScopeConfig{Scope: scope, Rate: DownloadRatePerSec, Burst: DownloadBurstCapacity}
	default:
		return ScopeConfig{Scope: ScopeRead, Rate: ReadRatePerSec, Burst: ReadBurstCapacity}
	}
}

// EndpointRule maps an endpoint pattern to its scope.
// The most specific matching rule wins: method-specific rules first, then
// longer patterns.
type EndpointRule struct {
	// Pattern is matched with strings.Contains so path parameters are ignored.
	Pattern string

	// Method is the HTTP method to match, or "" for any method.
	Method string

	Scope Scope
}

func (r EndpointRule) specificity() int {
	score := len(r.Pattern)
	if r.Method != "" {
		score += 1000
	}
	return score
}

// Registry maps job server endpoints to scopes and owns one limiter per scope.
type Registry struct {
	rules        []EndpointRule
	limiters     map[Scope]*RateLimiter
	defaultScope Scope
}

// NewRegistry creates a registry with the known job server endpoint rules.
func NewRegistry() *Registry {
	r := &Registry{
		defaultScope: ScopeRead,
		limiters: map[Scope]*RateLimiter{
			ScopeRead:     NewScopeRateLimiter(ScopeRead),
			ScopeAction:   NewScopeRateLimiter(ScopeAction),
			ScopeDownload: NewScopeRateLimiter(ScopeDownload),
		},
	}

	r.rules = []EndpointRule{
		{Pattern: "/pagination/", Method: http.MethodPost, Scope: ScopeRead},
		{Pattern: "/graphs/", Method: http.MethodPost, Scope: ScopeRead},
		{Pattern: "/jobspaces/", Method: "", Scope: ScopeRead},
		{Pattern: "/secure/download", Method: "", Scope: ScopeDownload},
		{Pattern: "/pause/job/", Method: "", Scope: ScopeAction},
		{Pattern: "/resume/job/", Method: "", Scope: ScopeAction},
		{Pattern: "/delete/job", Method: "", Scope: ScopeAction},
		{Pattern: "/job/edit/name/", Method: "", Scope: ScopeAction},
		{Pattern: "/changeQueue/job/", Method: "", Scope: ScopeAction},
		{Pattern: "/postprocess/job/", Method: "", Scope: ScopeAction},
		{Pattern: "/cache/clear/stats/", Method: "", Scope: ScopeAction},
		{Pattern: "/recompile/", Method: "", Scope: ScopeAction},
	}

	sort.Slice(r.rules, func(i, j int) bool {
		return r.rules[i].specificity() > r.rules[j].specificity()
	})

	return r
}

// ResolveScope determines the scope for a method and path, falling back to ScopeRead.
func (r *Registry) ResolveScope(method, path string) Scope {
	for _, rule := range r.rules {
		if !strings.Contains(path, rule.Pattern) {
			continue
		}
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		return rule.Scope
	}
	return r.defaultScope
}

// Limiter returns the limiter for the scope of method and path.
func (r *Registry) Limiter(method, path string) (*RateLimiter, Scope) {
	scope := r.ResolveScope(method, path)
	return r.limiters[scope], scope
}

// ScopeLimiter returns the limiter for scope.
func (r *Registry) ScopeLimiter(scope Scope) *RateLimiter {
	if rl, ok := r.limiters[scope]; ok {
		return rl
	}
	return r.limiters[r.defaultScope]
}

// ScopeDisplayString returns a human-readable description of the scope for logging.
// Example: "read (8.00/sec, burst 24)"
func (r *Registry) ScopeDisplayString(scope Scope) string {
	cfg := scopeConfig(scope)
	if cfg.Scope != scope {
		return string(scope) + " (unknown scope)"
	}
	return fmt.Sprintf("%s (%.2f/sec, burst %.0f)", scope, cfg.Rate, cfg.Burst)
}
