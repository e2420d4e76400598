package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultRequestTimeout is the timeout of the HTTP client created when none
// is supplied with WithHTTPClient.
const DefaultRequestTimeout = 30 * time.Second

// DriverState is the position of the crawl driver in its state machine.
type DriverState int

const (
	// StateIdle means the driver is between steps.
	StateIdle DriverState = iota

	// StateDispatching means the driver is scanning queues for ready requests.
	StateDispatching

	// StateAwaiting means the driver is suspended on a fetch or a pacing timer.
	StateAwaiting

	// StateDelivering means a response is being handed to the scraper.
	StateDelivering

	// StateDrained is terminal: nothing is queued, in flight or buffered.
	StateDrained
)

// String returns the state name.
func (s DriverState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateAwaiting:
		return "awaiting"
	case StateDelivering:
		return "delivering"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// event is one buffered item of the output sequence: a response waiting for
// the scraper or an error waiting for the consumer.
type event[S any] struct {
	resp *Response[S]
	err  *Error[S]
}

// fetchResult is what a fetch goroutine hands back to the driver.
type fetchResult[S any] struct {
	domain *domain[S]
	status int

	// robotsErr is set when the host's robots.txt could not be obtained.
	robotsHost string
	robotsErr  error

	resp *Response[S]
	err  *Error[S]
}

// Crawler owns the domain registry and the in-flight fetches of one crawl.
// Scrapers receive it to enqueue further requests.
//
// The driver runs on the goroutine that pulls the output sequence. Fetches
// run on their own goroutines and report back over a channel, so queues and
// counters are only ever touched by the driver.
type Crawler[S any] struct {
	registry *Registry[S]
	client   *http.Client
	robots   *RobotsGate
	opts     *options
	logger   *slog.Logger

	// global enforces the crawl-wide concurrency cap.
	global *semaphore.Weighted

	ctx    context.Context //nolint:containedctx // cancels every fetch on Close
	cancel context.CancelFunc
	group  errgroup.Group

	// completions is buffered to the global cap, so a fetch goroutine
	// never blocks on its final send.
	completions chan fetchResult[S]
	inFlight    int
	cursor      int

	mu             sync.Mutex
	ready          []event[S]
	visitDepth     int
	robotsReported map[string]struct{}
	state          DriverState
	closed         bool
}

func newCrawler[S any](opts ...Option) *Crawler[S] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	robots := NewRobotsGate(o.client, o.userAgent, o.robotsTTL)
	robots.now = o.now

	ctx, cancel := context.WithCancel(context.Background())
	return &Crawler[S]{
		registry:       newRegistry[S](o),
		client:         o.client,
		robots:         robots,
		opts:           o,
		logger:         o.logger,
		global:         semaphore.NewWeighted(int64(o.maxConcurrent)),
		ctx:            ctx,
		cancel:         cancel,
		completions:    make(chan fetchResult[S], o.maxConcurrent),
		robotsReported: make(map[string]struct{}),
	}
}

// Registry returns the domain registry, for registering or adjusting
// domains while the crawl runs.
func (c *Crawler[S]) Registry() *Registry[S] {
	return c.registry
}

// Robots returns the robots.txt gate.
func (c *Crawler[S]) Robots() *RobotsGate {
	return c.robots
}

// InFlight returns the number of fetches currently running.
func (c *Crawler[S]) InFlight() int {
	return c.inFlight
}

// Visit enqueues rawURL without state.
func (c *Crawler[S]) Visit(rawURL string) {
	var zero S
	c.visit(rawURL, zero, false)
}

// VisitWithState enqueues rawURL carrying state. Called from a scraper, the
// request is one hop deeper than the response being scraped; otherwise it is
// a seed at depth 0.
//
// Rejections are not returned here: they are delivered as errors on a later
// pull of the output sequence.
func (c *Crawler[S]) VisitWithState(rawURL string, state S) {
	c.visit(rawURL, state, true)
}

// VisitRequest enqueues a copy of a caller-built request carrying state.
// The caller's request is never modified; the copy is bound to the crawl
// context and gets an empty header map when the original has none.
func (c *Crawler[S]) VisitRequest(req *http.Request, state S) {
	q := QueuedRequest[S]{State: state, HasState: true, Depth: c.currentDepth()}
	if req == nil {
		c.reject(newRequestError(KindFailedToBuildRequest, q, errors.New("nil request")))
		return
	}
	req = req.Clone(c.ctx)
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	q.Request = req
	if !crawlable(req.URL) {
		c.reject(newRequestError(KindInvalidRequest, q, nil))
		return
	}
	c.enqueue(q)
}

func (c *Crawler[S]) visit(rawURL string, state S, hasState bool) {
	q := QueuedRequest[S]{State: state, HasState: hasState, Depth: c.currentDepth()}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		c.reject(newRequestError(KindFailedToBuildRequest, q, err))
		return
	}
	if !crawlable(u) {
		e := newRequestError(KindInvalidRequest, q, nil)
		e.URL = u
		c.reject(e)
		return
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		e := newRequestError(KindFailedToBuildRequest, q, err)
		e.URL = u
		c.reject(e)
		return
	}
	q.Request = req
	c.enqueue(q)
}

func (c *Crawler[S]) enqueue(q QueuedRequest[S]) {
	if c.isClosed() {
		c.logger.Debug("ignoring visit on closed crawler", "url", q.Request.URL.String())
		return
	}
	if q.Request.Header.Get("User-Agent") == "" {
		q.Request.Header.Set("User-Agent", c.opts.userAgent)
	}

	if err := c.registry.Route(q); err != nil {
		var cerr *Error[S]
		if errors.As(err, &cerr) {
			c.reject(cerr)
		}
		return
	}
	c.logger.Debug("request queued", "url", q.Request.URL.String(), "depth", q.Depth)
}

// crawlable reports whether u is an absolute http(s) URL with a host.
func crawlable(u *url.URL) bool {
	if u == nil || u.Hostname() == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Crawler[S]) reject(e *Error[S]) {
	c.logger.Debug("request rejected", "kind", e.Kind.String(), "error", e.Error())
	c.pushReady(event[S]{err: e})
}

// dispatch scans the domains round-robin from the cursor and launches every
// request that is ready and fits both concurrency caps. It returns the
// shortest pacing wait among domains that hold back a request.
func (c *Crawler[S]) dispatch(now time.Time) (wait time.Duration, waiting bool) {
	r := c.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.order)
	if n == 0 {
		return 0, false
	}

	for released := true; released; {
		released = false
		start := c.cursor % n
		for i := range n {
			d := r.domains[r.order[(start+i)%n]]
			if d.queue.IsEmpty() || !d.slots.TryAcquire(1) {
				continue
			}
			if !c.global.TryAcquire(1) {
				// Nothing else can start until a fetch completes.
				d.slots.Release(1)
				return wait, waiting
			}

			req, w, ok := d.queue.PollNext(now)
			if !ok {
				d.slots.Release(1)
				c.global.Release(1)
				if w > 0 && (!waiting || w < wait) {
					wait, waiting = w, true
				}
				continue
			}

			c.cursor = (start + i + 1) % n
			released = true

			if req.Depth > d.config.MaxDepth {
				d.slots.Release(1)
				c.global.Release(1)
				c.reject(newRequestError(KindReachedMaxDepth, req, nil))
				continue
			}
			c.launch(d, req)
		}
	}
	return wait, waiting
}

// launch starts the fetch of req. Both concurrency permits are already held
// and are released by complete.
func (c *Crawler[S]) launch(d *domain[S], req QueuedRequest[S]) {
	cfg := d.config
	d.inFlight++
	c.inFlight++
	c.opts.metrics.observeDispatch(d.name)
	c.logger.Debug("dispatching request",
		"url", req.Request.URL.String(),
		"domain", d.name,
		"depth", req.Depth,
	)

	c.group.Go(func() error {
		res := c.fetch(c.ctx, cfg, req)
		res.domain = d
		c.completions <- res
		return nil
	})
}

// fetch runs the robots gate and the HTTP request for one dispatched request.
func (c *Crawler[S]) fetch(ctx context.Context, cfg DomainConfig, req QueuedRequest[S]) fetchResult[S] {
	var res fetchResult[S]

	if cfg.RespectRobotsTxt {
		verdict, err := c.robots.Check(ctx, req.Request.URL)
		switch {
		case err != nil:
			res.robotsHost = req.Host()
			res.robotsErr = err
			if c.opts.robotsPolicy == RobotsFailDeny {
				res.err = newDisallowedError(ReasonRobotsTxt, req)
				return res
			}
		case verdict == RobotsDisallowed:
			res.err = newDisallowedError(ReasonRobotsTxt, req)
			return res
		}
	}

	resp, err := c.client.Do(req.Request.WithContext(ctx))
	if err != nil {
		res.err = newRequestError(KindTransport, req, err)
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.maxBodySize+1))
	if err != nil {
		res.err = newRequestError(KindTransport, req, err)
		return res
	}
	truncated := int64(len(body)) > c.opts.maxBodySize
	if truncated {
		body = body[:c.opts.maxBodySize]
		c.logger.Warn("response body truncated",
			"url", req.Request.URL.String(),
			"limit", c.opts.maxBodySize)
	}

	res.status = resp.StatusCode
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success && cfg.SkipNonSuccessResponse {
		e := newRequestError(KindNoSuccessResponse, req, nil)
		e.StatusCode = resp.StatusCode
		res.err = e
		return res
	}

	finalURL := req.Request.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	res.resp = &Response[S]{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Truncated:  truncated,
		URL:        finalURL,
		Request:    req.Request,
		Depth:      req.Depth,
		State:      req.State,
		HasState:   req.HasState,
	}
	return res
}

// complete returns the permits of a finished fetch and buffers its outcome.
func (c *Crawler[S]) complete(res fetchResult[S]) {
	c.inFlight--
	c.registry.mu.Lock()
	res.domain.inFlight--
	c.registry.mu.Unlock()
	res.domain.slots.Release(1)
	c.global.Release(1)

	m := c.opts.metrics
	m.observeCompletion()
	if res.status != 0 {
		m.observeResponse(res.domain.name, res.status)
	}

	if res.robotsErr != nil {
		if _, seen := c.robotsReported[res.robotsHost]; !seen {
			c.robotsReported[res.robotsHost] = struct{}{}
			c.logger.Warn("robots.txt unavailable",
				"host", res.robotsHost,
				"policy", c.opts.robotsPolicy.String(),
				"error", res.robotsErr,
			)
			c.pushReady(event[S]{err: newRobotsError[S](res.robotsHost, res.robotsErr)})
		}
	}

	switch {
	case res.resp != nil:
		c.pushReady(event[S]{resp: res.resp})
	case res.err != nil:
		c.pushReady(event[S]{err: res.err})
	}
}

// reap completes every fetch that has already reported, without blocking.
func (c *Crawler[S]) reap() {
	for {
		select {
		case res := <-c.completions:
			c.complete(res)
		default:
			return
		}
	}
}

// await suspends until a fetch completes, the pacing wait elapses or ctx is
// done.
func (c *Crawler[S]) await(ctx context.Context, wait time.Duration, timed bool) error {
	var timeout <-chan time.Time
	if timed {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-c.completions:
		c.complete(res)
		return nil
	case <-timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown cancels in-flight fetches, waits for them and discards every
// queued and buffered item. It is idempotent.
func (c *Crawler[S]) shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	err := c.group.Wait()
	for c.inFlight > 0 {
		c.complete(<-c.completions)
	}
	discarded := c.registry.drain()

	c.mu.Lock()
	discarded += len(c.ready)
	c.ready = nil
	c.state = StateDrained
	c.mu.Unlock()

	if discarded > 0 {
		c.logger.Debug("crawl closed with pending work", "discarded", discarded)
	}
	return err
}

func (c *Crawler[S]) pushReady(ev event[S]) {
	c.mu.Lock()
	c.ready = append(c.ready, ev)
	c.mu.Unlock()
}

func (c *Crawler[S]) popReady() (event[S], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ready) == 0 {
		return event[S]{}, false
	}
	ev := c.ready[0]
	c.ready[0] = event[S]{}
	c.ready = c.ready[1:]
	return ev, true
}

func (c *Crawler[S]) hasReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ready) > 0
}

func (c *Crawler[S]) currentDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visitDepth
}

func (c *Crawler[S]) setVisitDepth(depth int) {
	c.mu.Lock()
	c.visitDepth = depth
	c.mu.Unlock()
}

func (c *Crawler[S]) setState(s DriverState) {
	c.mu.Lock()
	if !c.closed {
		c.state = s
	}
	c.mu.Unlock()
}

// State returns the current driver state.
func (c *Crawler[S]) State() DriverState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Crawler[S]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
