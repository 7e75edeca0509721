package ratelimit

import "time"

// The job server publishes no throttle table, but it serves every browser
// session from the same web tier. Budgets below keep one jobview process at
// roughly the load of an interactive page left open with auto-refresh.

// Read scope: pagination tables, job space listings and graph requests.
// Selecting a space issues three or four reads at once, so the burst allows
// a user to click through several spaces quickly.
const (
	ReadRatePerSec    = 8.0
	ReadBurstCapacity = 24
)

// Action scope: pause, resume, delete, rename, queue changes, post-processing
// and cache maintenance. These mutate server state and are never urgent.
const (
	ActionRatePerSec    = 1.0
	ActionBurstCapacity = 3
)

// Download scope: archive generation is expensive on the server.
const (
	DownloadRatePerSec    = 0.1
	DownloadBurstCapacity = 2
)

// Wait warnings
const (
	// WarnWaitThreshold - waits longer than this are announced (2 seconds)
	WarnWaitThreshold = 2 * time.Second

	// WarnInterval - minimum time between two announcements (10 seconds)
	WarnInterval = 10 * time.Second

	// LogWaitThreshold - completed waits longer than this are logged (5 seconds)
	LogWaitThreshold = 5 * time.Second

	// DefaultCooldown - pause applied on a 429 without Retry-After (5 seconds)
	DefaultCooldown = 5 * time.Second
)
