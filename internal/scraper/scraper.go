package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/model"
)

// Default sizing of the visited-URL filter.
const (
	DefaultExpectedURLs      = 1_000_000
	DefaultFalsePositiveRate = 0.001
)

// Stats counts what the scraper has seen so far.
type Stats struct {
	// Pages is the number of responses scraped.
	Pages int

	// LinksFound is the number of links extracted from HTML pages.
	LinksFound int

	// LinksFollowed is the number of links enqueued.
	LinksFollowed int

	// ParseErrors is the number of HTML documents that failed to parse.
	ParseErrors int
}

// LinkScraper is a crawler.Scraper[model.PageState, model.Page] that
// follows the links of every HTML page it is given.
type LinkScraper struct {
	patterns     func(host string) Patterns
	sameHostOnly bool
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	visited *bloom.BloomFilter
	stats   Stats
}

// Option configures a LinkScraper.
type Option func(*LinkScraper)

// WithPatterns applies the same ignore/follow patterns to every host.
func WithPatterns(p Patterns) Option {
	return func(s *LinkScraper) {
		s.patterns = func(string) Patterns { return p }
	}
}

// WithHostPatterns looks up ignore/follow patterns per host.
func WithHostPatterns(fn func(host string) Patterns) Option {
	return func(s *LinkScraper) {
		if fn != nil {
			s.patterns = fn
		}
	}
}

// WithSameHostOnly only follows links to the host of the page they were
// found on.
func WithSameHostOnly(same bool) Option {
	return func(s *LinkScraper) {
		s.sameHostOnly = same
	}
}

// WithFilterSize sizes the visited-URL bloom filter.
func WithFilterSize(expected uint, falsePositiveRate float64) Option {
	return func(s *LinkScraper) {
		if expected > 0 && falsePositiveRate > 0 && falsePositiveRate < 1 {
			s.visited = bloom.NewWithEstimates(expected, falsePositiveRate)
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LinkScraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the clock used for model.Page.FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(s *LinkScraper) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a LinkScraper.
func New(opts ...Option) *LinkScraper {
	s := &LinkScraper{
		patterns: func(string) Patterns { return Patterns{} },
		logger:   slog.Default(),
		now:      time.Now,
		visited:  bloom.NewWithEstimates(DefaultExpectedURLs, DefaultFalsePositiveRate),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape implements crawler.Scraper.
func (s *LinkScraper) Scrape(_ context.Context, resp *crawler.Response[model.PageState], cr *crawler.Crawler[model.PageState]) (*model.Page, error) {
	pageURL := resp.URL
	if pageURL == nil && resp.Request != nil {
		pageURL = resp.Request.URL
	}
	if pageURL == nil {
		return nil, ErrMissingURL
	}

	page := &model.Page{
		URL:         pageURL.String(),
		Host:        strings.ToLower(pageURL.Hostname()),
		StatusCode:  resp.StatusCode,
		Depth:       resp.Depth,
		ContentType: resp.ContentType(),
		Referrer:    resp.State.Referrer,
		FetchedAt:   s.now(),
		Raw:         resp.Body,
		Truncated:   resp.Truncated,
	}
	page.ComputeHash()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Pages++
	s.markVisited(pageURL.String())
	if resp.Request != nil && resp.Request.URL != nil {
		s.markVisited(resp.Request.URL.String())
	}

	if !resp.IsHTML() || !resp.IsSuccess() {
		return page, nil
	}

	doc, err := ParseHTML(pageURL, DecodeHTML(resp.Body, resp.Header.Get("Content-Type")))
	if err != nil {
		s.stats.ParseErrors++
		s.logger.Debug("failed to parse page", "url", page.URL, "error", err)
		return page, nil
	}
	page.Title = doc.Title
	page.LinkCount = len(doc.Links)
	s.stats.LinksFound += len(doc.Links)

	for _, link := range doc.Links {
		if !s.shouldFollow(pageURL, link) {
			continue
		}
		if s.visited.TestAndAdd([]byte(normalizeURL(link))) {
			continue
		}
		cr.VisitWithState(link, model.PageState{Referrer: page.URL})
		page.Followed++
		s.stats.LinksFollowed++
	}
	return page, nil
}

// Stats returns the current counters.
func (s *LinkScraper) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Seen reports whether rawURL has been scraped or enqueued. False positives
// are possible, false negatives are not.
func (s *LinkScraper) Seen(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited.Test([]byte(normalizeURL(rawURL)))
}

// markVisited must be called with s.mu held.
func (s *LinkScraper) markVisited(rawURL string) {
	s.visited.Add([]byte(normalizeURL(rawURL)))
}

func (s *LinkScraper) shouldFollow(page *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if s.sameHostOnly && !strings.EqualFold(u.Hostname(), page.Hostname()) {
		return false
	}
	return s.patterns(strings.ToLower(u.Hostname())).Allows(link)
}

// normalizeURL canonicalises a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. The fragment does not change the fetched document
//  2. Scheme and host are case-insensitive
//  3. An empty path and "/" address the same resource
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
