package crawler

import (
	"maps"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ListMode selects how the registry treats unknown domains.
type ListMode int

const (
	// AllowListMode crawls only registered domains.
	AllowListMode ListMode = iota

	// BlockListMode crawls every domain except the blocked ones.
	BlockListMode
)

// String returns the mode name.
func (m ListMode) String() string {
	if m == BlockListMode {
		return "block-list"
	}
	return "allow-list"
}

// UnboundedDepth is the MaxDepth of a domain without a depth limit.
const UnboundedDepth = math.MaxInt

// DomainConfig is the politeness configuration bound to one domain.
type DomainConfig struct {
	// MaxDepth is the deepest request that may be dispatched. Seeds are depth 0.
	MaxDepth int

	// MaxConcurrentRequests caps in-flight fetches for the domain.
	// Zero lets the registry derive a share of the global cap.
	MaxConcurrentRequests int

	// Delay is the optional pacing policy of the domain queue.
	Delay *RequestDelay

	// RespectRobotsTxt enables the robots.txt gate for the domain.
	RespectRobotsTxt bool

	// SkipNonSuccessResponse turns non-2xx responses into errors instead of
	// handing them to the scraper.
	SkipNonSuccessResponse bool
}

// domain is a registered host with its queue and in-flight accounting.
// Only the driver touches queue and inFlight.
type domain[S any] struct {
	name   string
	config DomainConfig
	queue  *RequestQueue[S]

	// slots enforces config.MaxConcurrentRequests. It is sized once at
	// registration; changing the cap means registering the domain again.
	slots    *semaphore.Weighted
	inFlight int
}

func newDomain[S any](name string, cfg DomainConfig) *domain[S] {
	q := NewRequestQueue[S]()
	if cfg.Delay != nil {
		q = NewRequestQueueWithDelay[S](*cfg.Delay)
	}
	return &domain[S]{
		name:   name,
		config: cfg,
		queue:  q,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
	}
}

// Registry maps domains to their queues and configuration, and decides for
// every candidate request whether it may be crawled and which queue owns it.
//
// Design decision: We guard the registry with a RWMutex even though the
// driver is its main user because:
//  1. Register and Unregister may be called from outside the driver loop
//  2. Registration is rare, routing is frequent (single writer, many readers)
//  3. The driver never holds the lock while the scraper runs
type Registry[S any] struct {
	mode ListMode

	mu      sync.RWMutex
	domains map[string]*domain[S]
	order   []string

	// blocked and shared are only used in block-list mode.
	blocked map[string]struct{}
	shared  DomainConfig

	// globalCap is the crawl-wide concurrency cap used to derive per-domain
	// shares for domains registered without an explicit cap.
	globalCap int
}

// NewAllowList creates an allow-list registry. Every domain in configs is
// registered; domains without an explicit cap receive an even share of
// globalCap (at least one).
func NewAllowList[S any](globalCap int, configs map[string]DomainConfig) *Registry[S] {
	r := &Registry[S]{
		mode:      AllowListMode,
		domains:   make(map[string]*domain[S], len(configs)),
		globalCap: max(globalCap, 1),
	}

	normalized := make(map[string]DomainConfig, len(configs))
	for name, cfg := range configs {
		normalized[normalizeHost(name)] = cfg
	}
	names := slices.Sorted(maps.Keys(normalized))

	share := evenShare(r.globalCap, len(names))
	for _, name := range names {
		cfg := normalized[name]
		if cfg.MaxConcurrentRequests <= 0 {
			cfg.MaxConcurrentRequests = share
		}
		r.domains[name] = newDomain[S](name, cfg)
		r.order = append(r.order, name)
	}
	return r
}

// NewBlockList creates a block-list registry. Every host except the blocked
// ones is crawled with the shared configuration; each host still gets its
// own queue so pacing stays per host.
func NewBlockList[S any](globalCap int, blocked []string, shared DomainConfig) *Registry[S] {
	r := &Registry[S]{
		mode:      BlockListMode,
		domains:   make(map[string]*domain[S]),
		blocked:   make(map[string]struct{}, len(blocked)),
		globalCap: max(globalCap, 1),
	}
	for _, b := range blocked {
		r.blocked[normalizeHost(b)] = struct{}{}
	}
	if shared.MaxConcurrentRequests <= 0 {
		shared.MaxConcurrentRequests = r.globalCap
	}
	r.shared = shared
	return r
}

// Mode returns the registry mode.
func (r *Registry[S]) Mode() ListMode {
	return r.mode
}

// Register adds or replaces a domain. Requests still queued for a replaced
// domain move to the new queue in order, and an armed pacing timer keeps
// its remaining wait.
//
// In block-list mode registering a domain also removes it from the block
// list and gives it its own configuration.
func (r *Registry[S]) Register(name string, cfg DomainConfig) {
	name = normalizeHost(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.MaxConcurrentRequests <= 0 {
		n := len(r.domains)
		if _, exists := r.domains[name]; !exists {
			n++
		}
		cfg.MaxConcurrentRequests = evenShare(r.globalCap, n)
	}

	d := newDomain[S](name, cfg)
	if old, ok := r.domains[name]; ok {
		for _, req := range old.queue.Drain() {
			d.queue.Push(req)
		}
		d.queue.takeTimer(old.queue)
	} else {
		r.order = append(r.order, name)
	}
	r.domains[name] = d
	delete(r.blocked, name)
}

// Unregister removes a domain and returns the requests still queued for it.
// In block-list mode the domain is also added to the block list.
func (r *Registry[S]) Unregister(name string) []QueuedRequest[S] {
	name = normalizeHost(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == BlockListMode {
		r.blocked[name] = struct{}{}
	}

	d, ok := r.domains[name]
	if !ok {
		return nil
	}
	delete(r.domains, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return d.queue.Drain()
}

// Lookup returns the live configuration of a domain.
func (r *Registry[S]) Lookup(name string) (DomainConfig, bool) {
	name = normalizeHost(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.domains[name]; ok {
		return d.config, true
	}
	if r.mode == BlockListMode {
		if _, blocked := r.blocked[name]; !blocked {
			return r.shared, true
		}
	}
	return DomainConfig{}, false
}

// Update adjusts a registered domain's configuration in place. Delay changes
// are applied to the queue without disturbing queued items or an armed
// timer. MaxConcurrentRequests cannot be changed this way; use Register.
// It reports whether the domain exists.
func (r *Registry[S]) Update(name string, fn func(*DomainConfig)) bool {
	name = normalizeHost(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.domains[name]
	if !ok {
		return false
	}

	cfg := d.config
	fn(&cfg)
	cfg.MaxConcurrentRequests = d.config.MaxConcurrentRequests

	if cfg.Delay == nil {
		d.queue.RemoveDelay()
	} else {
		d.queue.SetDelay(*cfg.Delay)
	}
	d.config = cfg
	return true
}

// Domains returns the registered domain names in scan order.
func (r *Registry[S]) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Pending returns the number of queued requests across all domains.
func (r *Registry[S]) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, d := range r.domains {
		n += d.queue.Len()
	}
	return n
}

// Route validates a request and pushes it onto the owning domain's queue.
// A rejected request is returned as a DisallowedRequest (UserConfig) error
// carrying its state; it never reaches the transport.
func (r *Registry[S]) Route(req QueuedRequest[S]) error {
	host := req.Host()
	if host == "" {
		return newRequestError(KindInvalidRequest, req, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.domains[host]
	switch {
	case ok:
	case r.mode == AllowListMode:
		return newDisallowedError(ReasonUserConfig, req)
	default:
		if _, blocked := r.blocked[host]; blocked {
			return newDisallowedError(ReasonUserConfig, req)
		}
		d = newDomain[S](host, r.shared)
		r.domains[host] = d
		r.order = append(r.order, host)
	}

	d.queue.Push(req)
	return nil
}

// drain empties every queue and returns how many requests were discarded.
func (r *Registry[S]) drain() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, d := range r.domains {
		n += len(d.queue.Drain())
	}
	return n
}

// evenShare splits total across n domains, never below one.
func evenShare(total, n int) int {
	if n <= 0 {
		return max(total, 1)
	}
	return max(total/n, 1)
}
