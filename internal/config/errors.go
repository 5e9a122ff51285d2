package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no site URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one site URL")

	// ErrInvalidTarget is returned for a target that is not an http(s) URL.
	ErrInvalidTarget = errors.New("invalid target: expected an http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned when max pages is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMinWords is returned when the thin content threshold is negative.
	ErrInvalidMinWords = errors.New("invalid min words: must be non-negative")

	// ErrInvalidThresholds is returned unless 0 < near <= exact <= 1.
	ErrInvalidThresholds = errors.New("invalid duplicate thresholds: need 0 < near <= exact <= 1")

	// ErrInvalidWorkers is returned for negative workers or bands.
	ErrInvalidWorkers = errors.New("invalid workers or bands: must be non-negative")

	// ErrUnknownFormat is returned for a report format other than simple, json or markdown.
	ErrUnknownFormat = errors.New("unknown report format: use simple, json or markdown")
)
