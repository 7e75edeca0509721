// Package config provides configuration management for jobview.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/starexec/jobview/internal/constants"
)

// Config holds everything needed to talk to a job server and render one job.
//
// Config file location:
//   - Windows: %APPDATA%\jobview\config
//   - Unix: ~/.config/jobview/config
//
// INI format:
//
//	[server]
//	url = https://www.starexec.org/starexec
//	api_key = <token>
//	job_id = 1234
//
//	[proxy]
//	mode = no-proxy
//	host = proxy.corp
//	port = 8080
//	user =
//	no_proxy = *.internal.corp
//	warmup = false
//
//	[view]
//	page_size = 10
//	poll_interval_seconds = 30
//	wallclock = true
//	stage = 0
//	sync_results = false
//
// Every field can be overridden from the environment with a JOBVIEW_ prefix
// (see ApplyEnv) and the most common ones from command-line flags.
type Config struct {
	// Server settings
	ServerURL string `env:"URL"`
	APIKey    string `env:"API_KEY"`
	JobID     int    `env:"JOB_ID"`

	// Proxy settings
	ProxyMode     string `env:"PROXY_MODE"` // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string `env:"PROXY_HOST"`
	ProxyPort     int    `env:"PROXY_PORT"`
	ProxyUser     string `env:"PROXY_USER"`
	ProxyPassword string `env:"PROXY_PASSWORD"` // never written to disk
	NoProxy       string `env:"NO_PROXY"`       // comma-separated hosts/CIDRs that bypass the proxy
	ProxyWarmup   bool   `env:"PROXY_WARMUP"`

	// View settings
	PageSize            int  `env:"PAGE_SIZE"`
	PollIntervalSeconds int  `env:"POLL_INTERVAL_SECONDS"`
	Wallclock           bool `env:"WALLCLOCK"`
	Stage               int  `env:"STAGE"` // 0 means the primary stage
	SyncResults         bool `env:"SYNC_RESULTS"`
}

// Validation errors
var (
	ErrMissingServerURL    = errors.New("server url is required")
	ErrMissingAPIKey       = errors.New("api_key is required")
	ErrMissingJobID        = errors.New("job_id is required")
	ErrInvalidProxyMode    = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrInvalidPageSize     = fmt.Errorf("page_size must be between %d and %d", constants.MinPageSize, constants.MaxPageSize)
	ErrInvalidPollInterval = fmt.Errorf("poll_interval_seconds must be at least %d", int(constants.MinPollInterval/time.Second))
	ErrInvalidStage        = errors.New("stage must not be negative")
)

// DefaultServerURL is used when neither the file nor the environment names a server.
const DefaultServerURL = "https://www.starexec.org/starexec"

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerURL:           DefaultServerURL,
		ProxyMode:           "no-proxy",
		PageSize:            constants.DefaultPageSize,
		PollIntervalSeconds: int(constants.DefaultPollInterval / time.Second),
		Wallclock:           true,
	}
}

// Load reads configuration from an INI file.
// If path is empty the default location is used. A missing file yields the
// defaults and no error; a file that exists but cannot be parsed is an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.ServerURL = server.Key("url").MustString(cfg.ServerURL)
	cfg.APIKey = server.Key("api_key").String()
	cfg.JobID = server.Key("job_id").MustInt(0)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	view := iniFile.Section("view")
	cfg.PageSize = view.Key("page_size").MustInt(cfg.PageSize)
	cfg.PollIntervalSeconds = view.Key("poll_interval_seconds").MustInt(cfg.PollIntervalSeconds)
	cfg.Wallclock = view.Key("wallclock").MustBool(cfg.Wallclock)
	cfg.Stage = view.Key("stage").MustInt(0)
	cfg.SyncResults = view.Key("sync_results").MustBool(false)

	return cfg, nil
}

// Save writes configuration to an INI file, creating parent directories.
// The API key is stored in the file; the proxy password never is.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("url").SetValue(cfg.ServerURL)
	server.Key("api_key").SetValue(cfg.APIKey)
	server.Key("job_id").SetValue(strconv.Itoa(cfg.JobID))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	view, err := iniFile.NewSection("view")
	if err != nil {
		return fmt.Errorf("failed to create view section: %w", err)
	}
	view.Key("page_size").SetValue(strconv.Itoa(cfg.PageSize))
	view.Key("poll_interval_seconds").SetValue(strconv.Itoa(cfg.PollIntervalSeconds))
	view.Key("wallclock").SetValue(strconv.FormatBool(cfg.Wallclock))
	view.Key("stage").SetValue(strconv.Itoa(cfg.Stage))
	view.Key("sync_results").SetValue(strconv.FormatBool(cfg.SyncResults))

	// Temporary file + rename so a crash never leaves a half-written config
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// MergeWithFlags applies command-line values on top of file and environment.
// Empty strings and zero numbers mean "flag not given".
func (c *Config) MergeWithFlags(apiKey, serverURL string, jobID int, proxyMode, proxyHost string, proxyPort int) {
	if apiKey != "" {
		c.APIKey = apiKey
	}
	if serverURL != "" {
		c.ServerURL = serverURL
	}
	if jobID > 0 {
		c.JobID = jobID
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if proxyHost != "" {
		c.ProxyHost = proxyHost
	}
	if proxyPort > 0 {
		c.ProxyPort = proxyPort
	}

	c.ServerURL = strings.TrimSuffix(c.ServerURL, "/")
	if c.ServerURL != "" && !strings.HasPrefix(c.ServerURL, "http") {
		c.ServerURL = "https://" + c.ServerURL
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.ValidateForConnection(); err != nil {
		return err
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	if c.PageSize < constants.MinPageSize || c.PageSize > constants.MaxPageSize {
		return ErrInvalidPageSize
	}
	if time.Duration(c.PollIntervalSeconds)*time.Second < constants.MinPollInterval {
		return ErrInvalidPollInterval
	}
	if c.Stage < 0 {
		return ErrInvalidStage
	}
	return nil
}

// ValidateForConnection checks only the settings needed to make API calls.
func (c *Config) ValidateForConnection() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return ErrMissingServerURL
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// ValidateForJob checks connection settings plus a job id.
func (c *Config) ValidateForJob() error {
	if err := c.ValidateForConnection(); err != nil {
		return err
	}
	if c.JobID <= 0 {
		return ErrMissingJobID
	}
	return nil
}

// PollInterval returns the refresh interval, clamped to the minimum.
func (c *Config) PollInterval() time.Duration {
	d := time.Duration(c.PollIntervalSeconds) * time.Second
	if d < constants.MinPollInterval {
		return constants.MinPollInterval
	}
	return d
}

// Redacted returns a copy safe for printing.
func (c *Config) Redacted() Config {
	out := *c
	if out.APIKey != "" {
		out.APIKey = maskSecret(out.APIKey)
	}
	if out.ProxyPassword != "" {
		out.ProxyPassword = "****"
	}
	return out
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
