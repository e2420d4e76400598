package config

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
)

// ParseRobotsFailurePolicy converts "allow" or "deny" into a crawler policy.
// An empty string selects the default.
func ParseRobotsFailurePolicy(s string) (crawler.RobotsFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return crawler.RobotsFailAllow, nil
	case "deny":
		return crawler.RobotsFailDeny, nil
	default:
		return crawler.RobotsFailAllow, ErrInvalidRobotsPolicy
	}
}

// AllowedDomains returns the allow-listed domains from the flags and the
// configuration file, sorted and without duplicates. An empty result means
// block-list mode.
func (c *Config) AllowedDomains() []string {
	names := slices.Clone(c.Allow)
	if c.File != nil {
		names = append(names, c.File.DomainNames()...)
	}
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// DisallowedDomains returns the block-listed domains from the flags and the
// configuration file.
func (c *Config) DisallowedDomains() []string {
	names := slices.Clone(c.Disallow)
	if c.File != nil {
		names = append(names, c.File.Disallowed...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Settings returns the file settings of host, or the file defaults for an
// empty host. Without a file it returns zero settings.
func (c *Config) Settings(host string) DomainSettings {
	if c.File == nil {
		return DomainSettings{}
	}
	return c.File.Settings(host)
}

// DomainConfig resolves the crawler configuration of host: command line
// values overridden by the file defaults, then by the host's own entry.
func (c *Config) DomainConfig(host string) crawler.DomainConfig {
	s := c.Settings(host)

	cfg := crawler.DomainConfig{
		MaxDepth:               depthLimit(c.MaxDepth),
		Delay:                  delayPolicy(c.Delay, c.MaxDelay),
		RespectRobotsTxt:       c.RespectRobotsTxt,
		SkipNonSuccessResponse: !c.ScrapeNonSuccess,
		MaxConcurrentRequests:  s.MaxConcurrent,
	}

	switch {
	case s.Rate != nil:
		d := crawler.RateDelay(s.Rate.Requests, s.Rate.Window)
		cfg.Delay = &d
	case s.RandomDelay != nil:
		d := crawler.RandomDelayInRange(s.RandomDelay.Min, s.RandomDelay.Max)
		cfg.Delay = &d
	case s.Delay != nil:
		cfg.Delay = delayPolicy(*s.Delay, 0)
	}
	if s.MaxDepth != nil {
		cfg.MaxDepth = depthLimit(*s.MaxDepth)
	}
	if s.RespectRobotsTxt != nil {
		cfg.RespectRobotsTxt = *s.RespectRobotsTxt
	}
	if s.ScrapeNonSuccess != nil {
		cfg.SkipNonSuccessResponse = !*s.ScrapeNonSuccess
	}
	return cfg
}

// CrawlerOptions translates the configuration into crawler options.
// client, logger and metrics are passed through when non-nil.
func (c *Config) CrawlerOptions(client *http.Client, logger *slog.Logger, metrics *crawler.Metrics) []crawler.Option {
	policy, _ := ParseRobotsFailurePolicy(c.RobotsFailurePolicy) //nolint:errcheck // checked by Validate

	shared := c.DomainConfig("")
	opts := []crawler.Option{
		crawler.WithMaxConcurrentRequests(c.MaxConcurrent),
		crawler.WithMaxDepth(shared.MaxDepth),
		crawler.WithRespectRobotsTxt(shared.RespectRobotsTxt),
		crawler.WithScrapeNonSuccessResponse(!shared.SkipNonSuccessResponse),
		crawler.WithUserAgent(c.UserAgent),
		crawler.WithMaxBodySize(c.MaxBodySize),
		crawler.WithRobotsFailurePolicy(policy),
	}
	if shared.Delay != nil {
		opts = append(opts, crawler.WithDefaultDelay(*shared.Delay))
	}
	if client != nil {
		opts = append(opts, crawler.WithHTTPClient(client))
	}
	if logger != nil {
		opts = append(opts, crawler.WithLogger(logger))
	}
	if metrics != nil {
		opts = append(opts, crawler.WithMetrics(metrics))
	}

	if allowed := c.AllowedDomains(); len(allowed) > 0 {
		for _, host := range allowed {
			opts = append(opts, crawler.WithDomainConfig(host, c.DomainConfig(host)))
		}
		return opts
	}
	return append(opts, crawler.WithDisallowedDomains(c.DisallowedDomains()...))
}

func depthLimit(depth int) int {
	if depth < 0 {
		return crawler.UnboundedDepth
	}
	return depth
}

func delayPolicy(delay, maxDelay time.Duration) *crawler.RequestDelay {
	var d crawler.RequestDelay
	switch {
	case maxDelay > delay:
		d = crawler.RandomDelayInRange(delay, maxDelay)
	case delay > 0:
		d = crawler.FixedDelay(delay)
	default:
		return nil
	}
	return &d
}
