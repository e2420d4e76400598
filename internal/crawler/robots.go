package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsVerdict is the outcome of a robots.txt check.
type RobotsVerdict int

const (
	// RobotsUnknown means the rules could not be obtained.
	RobotsUnknown RobotsVerdict = iota

	// RobotsAllowed means the path may be fetched.
	RobotsAllowed

	// RobotsDisallowed means robots.txt forbids the path.
	RobotsDisallowed
)

// String returns a human-readable verdict.
func (v RobotsVerdict) String() string {
	switch v {
	case RobotsAllowed:
		return "allowed"
	case RobotsDisallowed:
		return "disallowed"
	default:
		return "unknown"
	}
}

// RobotsFailurePolicy decides what happens to requests for a host whose
// robots.txt could not be fetched.
type RobotsFailurePolicy int

const (
	// RobotsFailAllow proceeds with the fetch after reporting the failure.
	RobotsFailAllow RobotsFailurePolicy = iota

	// RobotsFailDeny rejects requests to the host as robots-disallowed.
	RobotsFailDeny
)

// String returns the policy name used in configuration files.
func (p RobotsFailurePolicy) String() string {
	if p == RobotsFailDeny {
		return "deny"
	}
	return "allow"
}

// robotsEntry is the cached result of one robots.txt fetch.
// Exactly one of data and err is set.
type robotsEntry struct {
	data    *robotstxt.RobotsData
	err     error
	fetched time.Time
}

// RobotsGate fetches, caches and evaluates robots.txt rules per host.
//
// A host's rules are fetched at most once until Invalidate is called (or
// the optional TTL expires). Fetch failures are cached like successes, so a
// broken host produces one failure instead of one per request.
//
// Design decision: We collapse concurrent first lookups with singleflight
// because:
//  1. Fetch goroutines for the same host start together when a crawl begins
//  2. Without it every one of them would download robots.txt
//  3. The cache lock is never held across network I/O
type RobotsGate struct {
	client    *http.Client
	userAgent string

	// ttl is how long a cached entry stays valid; zero means forever.
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	cache map[string]robotsEntry

	group singleflight.Group
}

// NewRobotsGate creates a gate that fetches with client and matches rules
// for userAgent. A nil client uses http.DefaultClient.
func NewRobotsGate(client *http.Client, userAgent string, ttl time.Duration) *RobotsGate {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		now:       time.Now,
		cache:     make(map[string]robotsEntry),
	}
}

// Check reports whether u may be fetched. When the rules cannot be obtained
// the verdict is RobotsUnknown and the cached fetch error is returned.
func (g *RobotsGate) Check(ctx context.Context, u *url.URL) (RobotsVerdict, error) {
	if u == nil || u.Host == "" {
		return RobotsUnknown, fmt.Errorf("%w: missing host", ErrInvalidRequest)
	}

	entry := g.lookup(ctx, u)
	if entry.err != nil {
		return RobotsUnknown, entry.err
	}

	group := entry.data.FindGroup(g.userAgent)
	if group == nil {
		return RobotsAllowed, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if group.Test(path) {
		return RobotsAllowed, nil
	}
	return RobotsDisallowed, nil
}

// Cached reports whether rules (or a cached failure) exist for host.
func (g *RobotsGate) Cached(host string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.cache[normalizeAuthority(host)]
	return ok
}

// Invalidate drops the cached entry for host so the next check refetches.
func (g *RobotsGate) Invalidate(host string) {
	g.mu.Lock()
	delete(g.cache, normalizeAuthority(host))
	g.mu.Unlock()
}

func (g *RobotsGate) lookup(ctx context.Context, u *url.URL) robotsEntry {
	key := normalizeAuthority(u.Host)

	if entry, ok := g.fresh(key); ok {
		return entry
	}

	v, _, _ := g.group.Do(key, func() (any, error) {
		if e, ok := g.fresh(key); ok {
			return e, nil
		}
		e := g.fetch(ctx, u)
		g.mu.Lock()
		g.cache[key] = e
		g.mu.Unlock()
		return e, nil
	})
	return v.(robotsEntry) //nolint:forcetypeassert // Do only ever returns robotsEntry
}

// fresh returns the cached entry for key unless it is missing or expired.
func (g *RobotsGate) fresh(key string) (robotsEntry, bool) {
	g.mu.RLock()
	entry, ok := g.cache[key]
	g.mu.RUnlock()
	if !ok || (g.ttl > 0 && g.now().Sub(entry.fetched) >= g.ttl) {
		return robotsEntry{}, false
	}
	return entry, true
}

func (g *RobotsGate) fetch(ctx context.Context, u *url.URL) robotsEntry {
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	entry := robotsEntry{fetched: g.now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		entry.err = fmt.Errorf("build robots request: %w", err)
		return entry
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		entry.err = fmt.Errorf("fetch %s: %w", robotsURL, err)
		return entry
	}
	defer resp.Body.Close()

	// FromResponse maps 4xx to allow-all and 5xx to disallow-all.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		entry.err = fmt.Errorf("parse %s: %w", robotsURL, err)
		return entry
	}
	entry.data = data
	return entry
}
