package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"

	"github.com/starexec/jobview/internal/config"
)

// CreateDownloadClient returns a client for streaming job archives.
//
// It starts from ConfigureHTTPClient so downloads honour the same proxy
// settings as API calls, then removes the overall timeout (archives can take
// longer than any sane request timeout; callers bound them with a context)
// and enables HTTP/2 unless a proxy is in the way or JOBVIEW_DISABLE_HTTP2=true.
func CreateDownloadClient(cfg *config.Config) (*nethttp.Client, error) {
	var baseClient *nethttp.Client
	var err error

	if cfg != nil {
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		baseClient = &nethttp.Client{Transport: newTransport()}
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; leave it alone.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("JOBVIEW_DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("JOBVIEW_FORCE_HTTP2") != "true") {
		disableHTTP2(tr)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

// proxyActive trusts the configured mode first and only consults the
// environment for "system" mode or when there is no config.
func proxyActive(cfg *config.Config) bool {
	envProxy := os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	if cfg == nil {
		return envProxy
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return false
	case "system":
		return envProxy
	default:
		return true
	}
}
