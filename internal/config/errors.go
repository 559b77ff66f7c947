package config

import "errors"

var (
	// ErrNoAllowedHosts is returned when neither allowed hosts nor seed URLs are provided
	ErrNoAllowedHosts = errors.New("no allowed hosts configured and none derivable from seed URLs")
	// ErrInvalidDepthLimit is returned when depth_limit is negative
	ErrInvalidDepthLimit = errors.New("depth_limit must not be negative")
	// ErrInvalidMaxPages is returned when max_pages is not greater than 0
	ErrInvalidMaxPages = errors.New("max_pages must be greater than 0")
	// ErrInvalidRate is returned when per_host_rps is not greater than 0
	ErrInvalidRate = errors.New("rate_limits.per_host_rps must be greater than 0")
	// ErrInvalidConcurrency is returned when a concurrency cap is not greater than 0
	ErrInvalidConcurrency = errors.New("rate_limits concurrency caps must be greater than 0")
	// ErrInvalidRetries is returned when retries is negative
	ErrInvalidRetries = errors.New("retries must not be negative")
	// ErrInvalidTimeout is returned when request_timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrEmptyDatabasePath is returned when database path is empty
	ErrEmptyDatabasePath = errors.New("database_path cannot be empty")
)
