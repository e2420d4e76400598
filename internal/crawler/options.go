package crawler

import (
	"log/slog"
	"net/http"
	"time"
)

// Default option values.
const (
	// DefaultMaxConcurrentRequests is the global cap on in-flight fetches.
	// In allow-list mode it is split evenly across the allowed domains.
	DefaultMaxConcurrentRequests = 100

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies the crawler in requests and robots.txt matching.
	DefaultUserAgent = "politecrawl/1.0 (+https://github.com/nao1215/politecrawl)"
)

// options collects everything an Option can change.
type options struct {
	allowed        map[string]*RequestDelay
	domainConfigs  map[string]DomainConfig
	disallowed     []string
	defaultDelay   *RequestDelay
	maxDepth       int
	maxConcurrent  int
	respectRobots  bool
	skipNonSuccess bool
	client         *http.Client
	userAgent      string
	maxBodySize    int64
	robotsTTL      time.Duration
	robotsPolicy   RobotsFailurePolicy
	logger         *slog.Logger
	metrics        *Metrics
	now            func() time.Time
}

func defaultOptions() *options {
	return &options{
		allowed:        make(map[string]*RequestDelay),
		domainConfigs:  make(map[string]DomainConfig),
		maxDepth:       UnboundedDepth,
		maxConcurrent:  DefaultMaxConcurrentRequests,
		skipNonSuccess: true,
		userAgent:      DefaultUserAgent,
		maxBodySize:    DefaultMaxBodySize,
		robotsPolicy:   RobotsFailAllow,
		now:            time.Now,
	}
}

// Option configures a Crawler.
type Option func(*options)

// WithAllowedDomain allow-lists a domain. Once any domain is allow-listed
// the crawler runs in allow-list mode and the block list is ignored.
func WithAllowedDomain(domain string) Option {
	return func(o *options) {
		if _, ok := o.allowed[domain]; !ok {
			o.allowed[domain] = nil
		}
	}
}

// WithAllowedDomains allow-lists several domains.
func WithAllowedDomains(domains ...string) Option {
	return func(o *options) {
		for _, d := range domains {
			WithAllowedDomain(d)(o)
		}
	}
}

// WithAllowedDomainDelay allow-lists a domain and paces its queue with delay.
func WithAllowedDomainDelay(domain string, delay RequestDelay) Option {
	return func(o *options) {
		o.allowed[domain] = &delay
	}
}

// WithDomainConfig allow-lists a domain with a complete configuration,
// bypassing the global depth, robots and non-success defaults.
func WithDomainConfig(domain string, cfg DomainConfig) Option {
	return func(o *options) {
		o.domainConfigs[domain] = cfg
	}
}

// WithDisallowedDomains block-lists domains. It only has an effect when no
// domain is allow-listed.
func WithDisallowedDomains(domains ...string) Option {
	return func(o *options) {
		o.disallowed = append(o.disallowed, domains...)
	}
}

// WithDefaultDelay paces every host of a block-list crawl, and every
// allow-listed domain registered without its own delay.
func WithDefaultDelay(delay RequestDelay) Option {
	return func(o *options) {
		o.defaultDelay = &delay
	}
}

// WithMaxDepth bounds the number of callback hops from a seed.
// 0 = only the seeds, 1 = seeds plus the requests they produce, etc.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.maxDepth = depth
		}
	}
}

// WithMaxConcurrentRequests sets the global cap on in-flight fetches.
func WithMaxConcurrentRequests(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithRespectRobotsTxt enables robots.txt compliance.
func WithRespectRobotsTxt(respect bool) Option {
	return func(o *options) {
		o.respectRobots = respect
	}
}

// WithScrapeNonSuccessResponse hands non-2xx responses to the scraper
// instead of reporting them as NoSuccessResponse errors.
func WithScrapeNonSuccessResponse(scrape bool) Option {
	return func(o *options) {
		o.skipNonSuccess = !scrape
	}
}

// WithHTTPClient shares client across every domain and the robots gate.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many bytes of each response body are read.
func WithMaxBodySize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithRobotsCacheTTL expires cached robots.txt rules after ttl.
// Zero (the default) keeps them for the lifetime of the crawl.
func WithRobotsCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.robotsTTL = ttl
	}
}

// WithRobotsFailurePolicy decides what happens to requests for a host whose
// robots.txt could not be fetched.
func WithRobotsFailurePolicy(p RobotsFailurePolicy) Option {
	return func(o *options) {
		o.robotsPolicy = p
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records crawl progress into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces the clock used for pacing decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// domainConfig builds the configuration of an allow-listed domain from the
// global options.
func (o *options) domainConfig(delay *RequestDelay) DomainConfig {
	if delay == nil {
		delay = o.defaultDelay
	}
	return DomainConfig{
		MaxDepth:               o.maxDepth,
		Delay:                  delay,
		RespectRobotsTxt:       o.respectRobots,
		SkipNonSuccessResponse: o.skipNonSuccess,
	}
}

// newRegistry builds the allow-list or block-list registry.
func newRegistry[S any](o *options) *Registry[S] {
	if len(o.allowed) == 0 && len(o.domainConfigs) == 0 {
		return NewBlockList[S](o.maxConcurrent, o.disallowed, o.domainConfig(nil))
	}

	configs := make(map[string]DomainConfig, len(o.allowed)+len(o.domainConfigs))
	for name, delay := range o.allowed {
		configs[name] = o.domainConfig(delay)
	}
	for name, cfg := range o.domainConfigs {
		configs[name] = cfg
	}
	return NewAllowList[S](o.maxConcurrent, configs)
}
