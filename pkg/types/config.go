// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Default endpoints for the AuroraX API.
const (
	ProductionBaseURL = "https://api.aurorax.space"
	StagingBaseURL    = "https://api.staging.aurorax.space"
)

// ClientConfig holds settings for the AuroraX HTTP transport.
type ClientConfig struct {
	// BaseURL is the API root without the /api/v1 stub.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is sent in the x-aurorax-api-key header when non-empty.
	// Searches work anonymously; uploads require a key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout is the per-request HTTP timeout (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries bounds retry attempts for idempotent GET requests (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = ProductionBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.UserAgent == "" {
		c.UserAgent = "aurorax-go/dev"
	}
	return c
}

// PollConfig holds settings for waiting on asynchronous search requests.
type PollConfig struct {
	// Interval is the minimum delay between status checks (default 1s).
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxInterval caps the interval when Backoff grows it (default 30s).
	MaxInterval time.Duration `json:"max_interval" yaml:"max_interval"`

	// Backoff multiplies the interval after each check. Values <= 1 keep
	// a fixed interval.
	Backoff float64 `json:"backoff" yaml:"backoff"`

	// Timeout is the wall-clock deadline for the whole wait. Zero means
	// wait until the context is cancelled.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c PollConfig) WithDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = 30 * time.Second
		if c.MaxInterval < c.Interval {
			c.MaxInterval = c.Interval
		}
	}
	return c
}

// ResultsConfig controls how result pages are fetched.
type ResultsConfig struct {
	// PageSize is the number of records requested per page (default 10000).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c ResultsConfig) WithDefaults() ResultsConfig {
	if c.PageSize <= 0 {
		c.PageSize = 10000
	}
	return c
}

// HistoryConfig holds settings for the local request history database.
type HistoryConfig struct {
	// Path is the SQLite database file (default ~/.config/aurorax/history.db).
	Path string `json:"path" yaml:"path"`

	// Disabled turns off request recording.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// Config groups all settings for the CLI.
type Config struct {
	API     ClientConfig  `json:"api" yaml:"api"`
	Poll    PollConfig    `json:"poll" yaml:"poll"`
	Results ResultsConfig `json:"results" yaml:"results"`
	History HistoryConfig `json:"history" yaml:"history"`
}
