// Package http builds the HTTP clients used to talk to the job server:
// proxy-aware transports, NTLM negotiation and a long-lived download client.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/starexec/jobview/internal/config"
	"github.com/starexec/jobview/internal/constants"
	"github.com/starexec/jobview/internal/version"
)

// DefaultProxyPort is used when a proxy host is configured without a port.
const DefaultProxyPort = 8080

// ConfigureHTTPClient configures an HTTP client with the proxy settings in cfg.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := newTransport()

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm", "basic":
		// Incomplete saved config: fall back to a direct connection so the
		// user can still run `config init` to fix it.
		if cfg.ProxyHost == "" {
			log.Warn().Str("mode", cfg.ProxyMode).Msg("proxy host is missing, falling back to no-proxy mode")
			transport.Proxy = nil
			return newClient(transport), nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)

		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Warn().Str("user", cfg.ProxyUser).Msg("proxy password missing, proxy auth disabled until it is set")
		}

		var client *nethttp.Client
		if strings.EqualFold(cfg.ProxyMode, "ntlm") {
			client = &nethttp.Client{
				Transport: ntlmssp.Negotiator{RoundTripper: transport},
				Timeout:   constants.HTTPClientTimeout,
			}
		} else {
			client = newClient(transport)
		}

		if cfg.ProxyWarmup && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
			if err := warmupProxy(client, cfg); err != nil {
				return nil, fmt.Errorf("proxy warmup failed: %w", err)
			}
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	client := newClient(transport)

	if cfg.ProxyWarmup && cfg.ProxyMode == "system" {
		if err := warmupProxy(client, cfg); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}

	return client, nil
}

func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

func newClient(rt nethttp.RoundTripper) *nethttp.Client {
	return &nethttp.Client{
		Transport: rt,
		Timeout:   constants.HTTPClientTimeout,
	}
}

// buildProxyURL constructs a proxy URL from config.
// Credentials are embedded only if both user and password are present.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = DefaultProxyPort
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return proxyURL
}

// warmupProxy sends one cheap request so that proxy authentication happens
// before the first real fetch.
func warmupProxy(client *nethttp.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, strings.TrimSuffix(cfg.ServerURL, "/")+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusProxyAuthRequired {
		return fmt.Errorf("proxy rejected credentials: %s", resp.Status)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}
	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty it behaves like nethttp.ProxyURL; otherwise hosts and CIDRs
// are matched with golang.org/x/net/http/httpproxy.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass")
		} else {
			log.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword reports whether the proxy configuration needs a password
// that has not been provided. The CLI uses it to decide whether to prompt.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
