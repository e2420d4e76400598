package config

import "errors"

// Configuration errors. Validate returns them unwrapped so callers can use
// errors.Is.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL")

	// ErrConflictingDomainModes is returned when both allowed and disallowed
	// domains are set. A crawl is either allow-list or block-list.
	ErrConflictingDomainModes = errors.New("conflicting domain modes: --allow and --disallow cannot be used together")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxConcurrent is returned when the concurrency cap is not positive.
	ErrInvalidMaxConcurrent = errors.New("invalid max concurrent requests: must be positive")

	// ErrInvalidDelay is returned for negative delays or an inverted range.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative and max delay must not be below delay")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRobotsPolicy is returned for a policy other than allow or deny.
	ErrInvalidRobotsPolicy = errors.New("invalid robots failure policy: must be allow or deny")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidDomainSettings is returned when a domain entry in the file is invalid.
	ErrInvalidDomainSettings = errors.New("invalid domain settings")
)
