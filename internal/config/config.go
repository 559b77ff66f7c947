// Package config defines the crawl configuration surface and its
// validation rules.
package config

import (
	"net/url"
	"strings"
	"time"
)

// RateLimits bounds how aggressively the crawler may fetch.
type RateLimits struct {
	PerHostRPS         float64 `mapstructure:"per_host_rps" yaml:"per_host_rps"`                 // Dispatches per second per host
	PerHostConcurrency int     `mapstructure:"per_host_concurrency" yaml:"per_host_concurrency"` // Concurrent fetches per host
	GlobalConcurrency  int     `mapstructure:"global_concurrency" yaml:"global_concurrency"`     // Concurrent fetches across all hosts
}

// Logging controls the structured log output.
type Logging struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	File       string `mapstructure:"file" yaml:"file"`               // Log file path, empty for console only
	MaxSizeMB  int64  `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate the log file beyond this size
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files to keep
}

// Config holds the full crawler configuration.
type Config struct {
	// Crawl scope
	SeedURLs     []string `mapstructure:"seed_urls" yaml:"seed_urls"`         // Starting URLs, crawled first
	AllowedHosts []string `mapstructure:"allowed_hosts" yaml:"allowed_hosts"` // Hosts eligible for crawling; derived from seeds when empty
	DepthLimit   int      `mapstructure:"depth_limit" yaml:"depth_limit"`     // Maximum link hops from a seed
	MaxPages     int      `mapstructure:"max_pages" yaml:"max_pages"`         // Stop after this many dispatched pages

	// Politeness
	RateLimits RateLimits `mapstructure:"rate_limits" yaml:"rate_limits"`

	// Fetching
	Retries        int           `mapstructure:"retries" yaml:"retries"`                 // Retry budget per URL beyond the first attempt
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-request HTTP timeout
	BackoffUnit    time.Duration `mapstructure:"backoff_unit" yaml:"backoff_unit"`       // Base unit for exponential retry backoff
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	RespectRobots  bool          `mapstructure:"respect_robots" yaml:"respect_robots"`   // Whether to honor robots.txt

	// Dispatch loop
	EmptyPollLimit int `mapstructure:"empty_poll_limit" yaml:"empty_poll_limit"` // Consecutive empty polls before giving up

	// Logging
	Logging Logging `mapstructure:"logging" yaml:"logging"`

	// Output
	DatabasePath       string `mapstructure:"database_path" yaml:"database_path"`               // SQLite results database
	OutputJSONL        string `mapstructure:"output_jsonl" yaml:"output_jsonl"`                 // Document/chunk JSONL path, empty disables
	ChunkSizeTokens    int    `mapstructure:"chunk_size_tokens" yaml:"chunk_size_tokens"`       // Target chunk size in approximate tokens
	ChunkOverlapTokens int    `mapstructure:"chunk_overlap_tokens" yaml:"chunk_overlap_tokens"` // Overlap between consecutive chunks
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DepthLimit: 5,
		MaxPages:   200,
		RateLimits: RateLimits{
			PerHostRPS:         1,
			PerHostConcurrency: 2,
			GlobalConcurrency:  4,
		},
		Retries:            3,
		RequestTimeout:     30 * time.Second,
		BackoffUnit:        time.Second,
		UserAgent:          "Laneway/1.0",
		RespectRobots:      true,
		EmptyPollLimit:     10,
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		DatabasePath:       "./laneway.db",
		ChunkSizeTokens:    1000,
		ChunkOverlapTokens: 150,
	}
}

// Validate checks the configuration and fills derivable fields.
func (c *Config) Validate() error {
	if len(c.AllowedHosts) == 0 {
		c.AllowedHosts = hostsFromSeeds(c.SeedURLs)
	}
	if len(c.AllowedHosts) == 0 {
		return ErrNoAllowedHosts
	}
	if c.DepthLimit < 0 {
		return ErrInvalidDepthLimit
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.RateLimits.PerHostRPS <= 0 {
		return ErrInvalidRate
	}
	if c.RateLimits.PerHostConcurrency <= 0 || c.RateLimits.GlobalConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	if c.EmptyPollLimit <= 0 {
		c.EmptyPollLimit = 10
	}
	if c.DatabasePath == "" {
		return ErrEmptyDatabasePath
	}
	return nil
}

// hostsFromSeeds extracts the distinct hostnames of the seed URLs, so a
// plain invocation with only seeds stays confined to those sites.
func hostsFromSeeds(seeds []string) []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts
}
