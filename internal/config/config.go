package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values for the command line tool. The crawler
// package has its own library defaults; these are the politer values the
// CLI starts from.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "politecrawl"

	// DefaultTimeout bounds every HTTP request, including robots.txt fetches.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth is -1, meaning no depth limit.
	DefaultMaxDepth = -1

	// DefaultMaxConcurrent is the global cap on in-flight fetches. In
	// allow-list mode it is split evenly across the allowed domains.
	DefaultMaxConcurrent = 100

	// DefaultDelay is the pause between two requests to the same domain.
	// One second is conservative and respectful of server resources.
	DefaultDelay = 1 * time.Second

	// DefaultUserAgent identifies politecrawl in requests and robots.txt groups.
	DefaultUserAgent = "politecrawl/1.0 (+https://github.com/nao1215/politecrawl)"

	// DefaultMaxBodySize limits how much of each response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultRobotsFailurePolicy proceeds when robots.txt cannot be fetched.
	DefaultRobotsFailurePolicy = "allow"
)

// Config holds every option of a crawl run. It is populated from CLI flags
// and the optional .politecrawl file, then turned into crawler options.
//
// Design decision: We keep one flat struct, as the option set is small and
// maps one-to-one onto flags. Per-domain settings live in File.
type Config struct {
	// Seeds are the URLs the crawl starts from (depth 0).
	Seeds []string

	// Allow switches the crawl to allow-list mode: only these domains are
	// crawled. Mutually exclusive with Disallow.
	Allow []string

	// Disallow lists domains skipped in block-list mode.
	Disallow []string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxDepth bounds callback hops from a seed. Negative means unbounded.
	MaxDepth int

	// MaxConcurrent is the global cap on in-flight fetches.
	MaxConcurrent int

	// Delay is the pause between requests to one domain. When MaxDelay is
	// larger, the pause is drawn uniformly from [Delay, MaxDelay].
	Delay    time.Duration
	MaxDelay time.Duration

	// RespectRobotsTxt enables robots.txt compliance.
	RespectRobotsTxt bool

	// RobotsFailurePolicy is "allow" or "deny": what to do with requests to a
	// host whose robots.txt could not be fetched.
	RobotsFailurePolicy string

	// ScrapeNonSuccess hands non-2xx responses to the scraper instead of
	// reporting them as errors.
	ScrapeNonSuccess bool

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize limits how many bytes of each body are read.
	MaxBodySize int64

	// SameHostOnly restricts followed links to the host of the page they
	// were found on.
	SameHostOnly bool

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches log output to JSON.
	JSONLog bool

	// ConfigFilePath is an explicit path to the configuration file. When
	// empty, .politecrawl is searched in the current then home directory.
	ConfigFilePath string

	// File holds the per-domain settings loaded from the configuration file.
	File *File

	// JSONReport writes one JSON object per page and failure.
	// Mutually exclusive with MarkdownReport. With neither set, results are
	// printed as plain text lines.
	JSONReport bool

	// MarkdownReport writes a Markdown summary of the crawl.
	MarkdownReport bool

	// ReportFile is the output path; stdout when empty.
	ReportFile string

	// DBDir is where the SQLite database is stored when SaveToDB is set.
	DBDir string

	// SaveToDB persists pages and failures to SQLite.
	SaveToDB bool

	// MetricsAddress serves Prometheus metrics on this address when set.
	MetricsAddress string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:             DefaultTimeout,
		MaxDepth:            DefaultMaxDepth,
		MaxConcurrent:       DefaultMaxConcurrent,
		Delay:               DefaultDelay,
		RespectRobotsTxt:    true,
		RobotsFailurePolicy: DefaultRobotsFailurePolicy,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		DBDir:               XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for politecrawl.
// On Linux: ~/.local/share/politecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for politecrawl.
// On Linux: ~/.config/politecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if len(c.AllowedDomains()) > 0 && len(c.DisallowedDomains()) > 0 {
		return ErrConflictingDomainModes
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxConcurrent <= 0 {
		return ErrInvalidMaxConcurrent
	}
	if c.Delay < 0 || c.MaxDelay < 0 || (c.MaxDelay > 0 && c.MaxDelay < c.Delay) {
		return ErrInvalidDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := ParseRobotsFailurePolicy(c.RobotsFailurePolicy); err != nil {
		return err
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.File != nil {
		if err := c.File.Validate(); err != nil {
			return err
		}
	}
	return nil
}
