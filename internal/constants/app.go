package constants

import (
	"time"
)

// Event Bus
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Sized for bursty fetch traffic when the user scrolls through many job spaces.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size (5000)
	EventBusMaxBuffer = 5000
)

// Job View Polling
const (
	// DefaultPollInterval - how often the job view re-draws pairs and panels (30 seconds)
	// Matches the refresh cadence of the server's own job details page.
	DefaultPollInterval = 30 * time.Second

	// MinPollInterval - lower bound accepted from config/flags (5 seconds)
	MinPollInterval = 5 * time.Second

	// NoticeDuration - how long a transient error notice stays visible (5 seconds)
	NoticeDuration = 5 * time.Second
)

// Pagination limits enforced by the job server
const (
	// DefaultPageSize - default rows per pairs/stats page (10)
	DefaultPageSize = 10

	// MinPageSize - server rejects pages shorter than this (10)
	MinPageSize = 10

	// MaxPageSize - server rejects pages longer than this (100)
	MaxPageSize = 100

	// PanelPageSize - subspace summary panels request every row at once (1000)
	PanelPageSize = 1000

	// MaxPanelFetches - subspace panels loaded concurrently (4)
	MaxPanelFetches = 4

	// MaxPairSortColumn - highest sortable column index on the pairs table (6)
	MaxPairSortColumn = 6
)

// Graph selections
const (
	// MaxOverviewSelections - the space overview graph plots at most 5 configurations
	MaxOverviewSelections = 5

	// LargeGraphSuffix - appended to an overview graph URL to request the 600px rendition
	LargeGraphSuffix = "600"
)

// Job form limits
const (
	// MinJobNameLength - job names need at least 2 characters
	MinJobNameLength = 2

	// MaxJobNameLength - job names are limited to 32 characters
	MaxJobNameLength = 32

	// MaxJobDescriptionLength - job descriptions are limited to 1024 characters
	MaxJobDescriptionLength = 1024

	// MaxTimeoutSeconds - CPU and wallclock timeouts are capped at 3 days (259200 seconds)
	MaxTimeoutSeconds = 259200
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for a single API operation (30 seconds)
	APIContextTimeout = 30 * time.Second

	// APIConnectionTestTimeout - timeout for testing API connectivity (10 seconds)
	APIConnectionTestTimeout = 10 * time.Second

	// DownloadTimeout - timeout for a job archive download (2 hours)
	// Large jobs produce archives of several gigabytes.
	DownloadTimeout = 2 * time.Hour
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall timeout for non-download requests (300 seconds)
	HTTPClientTimeout = 300 * time.Second
)

// Rate Limiter Timeouts
const (
	// RateLimitWarningThreshold - delay threshold to show warning (2 seconds)
	RateLimitWarningThreshold = 2 * time.Second

	// RateLimitWarningInterval - minimum interval between warnings (10 seconds)
	RateLimitWarningInterval = 10 * time.Second

	// RateLimitLogThreshold - delay threshold for logging (5 seconds)
	RateLimitLogThreshold = 5 * time.Second
)

// Retry
const (
	// RetryMax - retryablehttp attempts after the first request (4)
	// Kept low because the view re-polls on its own.
	RetryMax = 4

	// RetryWaitMin - minimum backoff between retries (500ms)
	RetryWaitMin = 500 * time.Millisecond

	// RetryWaitMax - maximum backoff between retries (10 seconds)
	RetryWaitMax = 10 * time.Second
)
