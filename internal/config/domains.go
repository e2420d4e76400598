package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// RandomDelay is a uniformly random pause in [Min, Max].
type RandomDelay struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Rate allows at most Requests requests per Window.
type Rate struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// DomainSettings is the politeness configuration of one domain in the
// configuration file. Unset fields inherit from the file defaults, then
// from the command line. At most one of Delay, RandomDelay and Rate should
// be set; when several are, Rate wins over RandomDelay over Delay.
type DomainSettings struct {
	// Delay is a fixed pause between requests ("500ms", "2s").
	Delay *time.Duration `yaml:"delay,omitempty"`

	// RandomDelay is a random pause between requests.
	RandomDelay *RandomDelay `yaml:"random_delay,omitempty"`

	// Rate is a token-bucket limit on requests.
	Rate *Rate `yaml:"rate,omitempty"`

	// MaxDepth overrides the crawl depth limit. Negative means unbounded.
	MaxDepth *int `yaml:"max_depth,omitempty"`

	// MaxConcurrent caps in-flight requests for the domain.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// RespectRobotsTxt overrides robots.txt compliance.
	RespectRobotsTxt *bool `yaml:"respect_robots_txt,omitempty"`

	// ScrapeNonSuccess overrides delivery of non-2xx responses.
	ScrapeNonSuccess *bool `yaml:"scrape_non_success,omitempty"`

	// IgnorePatterns are glob patterns of URL paths never followed.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns restrict followed links to matching paths when set.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`
}

// File is the structure of the .politecrawl configuration file.
//
// Example:
//
//	defaults:
//	  delay: 1s
//	  respect_robots_txt: true
//	domains:
//	  books.example.com:
//	    random_delay: {min: 500ms, max: 2s}
//	    max_depth: 3
//	disallowed:
//	  - ads.example.com
type File struct {
	// Defaults apply to every domain unless overridden.
	Defaults DomainSettings `yaml:"defaults,omitempty"`

	// Domains switches the crawl to allow-list mode with per-domain settings.
	Domains map[string]DomainSettings `yaml:"domains,omitempty"`

	// Disallowed domains are skipped in block-list mode.
	Disallowed []string `yaml:"disallowed,omitempty"`
}

// Settings returns the settings of host: the defaults overridden by the
// host's own entry.
func (f *File) Settings(host string) DomainSettings {
	result := f.Defaults

	own, ok := f.Domains[strings.ToLower(host)]
	if !ok {
		return result
	}

	if own.Delay != nil || own.RandomDelay != nil || own.Rate != nil {
		result.Delay, result.RandomDelay, result.Rate = own.Delay, own.RandomDelay, own.Rate
	}
	if own.MaxDepth != nil {
		result.MaxDepth = own.MaxDepth
	}
	if own.MaxConcurrent != 0 {
		result.MaxConcurrent = own.MaxConcurrent
	}
	if own.RespectRobotsTxt != nil {
		result.RespectRobotsTxt = own.RespectRobotsTxt
	}
	if own.ScrapeNonSuccess != nil {
		result.ScrapeNonSuccess = own.ScrapeNonSuccess
	}
	if len(own.IgnorePatterns) > 0 {
		result.IgnorePatterns = own.IgnorePatterns
	}
	if len(own.FollowPatterns) > 0 {
		result.FollowPatterns = own.FollowPatterns
	}
	return result
}

// DomainNames returns the configured domains in sorted order.
func (f *File) DomainNames() []string {
	return slices.Sorted(maps.Keys(f.Domains))
}

// Validate checks the defaults and every domain entry.
func (f *File) Validate() error {
	if len(f.Domains) > 0 && len(f.Disallowed) > 0 {
		return ErrConflictingDomainModes
	}
	if err := f.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for _, name := range f.DomainNames() {
		s := f.Domains[name]
		if err := s.validate(); err != nil {
			return fmt.Errorf("domain %s: %w", name, err)
		}
	}
	return nil
}

func (s DomainSettings) validate() error {
	switch {
	case s.Delay != nil && *s.Delay < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidDomainSettings)
	case s.RandomDelay != nil && (s.RandomDelay.Min < 0 || s.RandomDelay.Max < s.RandomDelay.Min):
		return fmt.Errorf("%w: random_delay needs 0 <= min <= max", ErrInvalidDomainSettings)
	case s.Rate != nil && (s.Rate.Requests <= 0 || s.Rate.Window <= 0):
		return fmt.Errorf("%w: rate needs positive requests and window", ErrInvalidDomainSettings)
	case s.MaxConcurrent < 0:
		return fmt.Errorf("%w: negative max_concurrent", ErrInvalidDomainSettings)
	}
	return nil
}
