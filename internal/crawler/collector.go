package crawler

import (
	"context"
	"errors"
	"iter"
)

// Scraper turns a fetched response into at most one output record. It may
// call crawler.VisitWithState any number of times to enqueue further work.
type Scraper[S, O any] interface {
	Scrape(ctx context.Context, resp *Response[S], crawler *Crawler[S]) (*O, error)
}

// ScraperFunc adapts a function to the Scraper interface.
type ScraperFunc[S, O any] func(ctx context.Context, resp *Response[S], crawler *Crawler[S]) (*O, error)

// Scrape calls f.
func (f ScraperFunc[S, O]) Scrape(ctx context.Context, resp *Response[S], crawler *Crawler[S]) (*O, error) {
	return f(ctx, resp, crawler)
}

// Collector is the pull-based output sequence of a crawl. Each call to Next
// advances the crawl just far enough to produce one output or one error.
//
// A Collector is not safe for concurrent use. Cancel the context passed to
// Next to interrupt a blocked pull from another goroutine.
type Collector[S, O any] struct {
	crawler *Crawler[S]
	scraper Scraper[S, O]
}

// NewCollector creates a collector that hands every delivered response to
// scraper.
//
// Example:
//
//	c := crawler.NewCollector[PageState, Page](scraper.New(),
//		crawler.WithAllowedDomainDelay("example.com", crawler.FixedDelay(time.Second)),
//		crawler.WithMaxDepth(2),
//	)
//	defer c.Close()
//	c.Visit("https://example.com/")
//	for page, err := range c.All(ctx) { ... }
func NewCollector[S, O any](scraper Scraper[S, O], opts ...Option) *Collector[S, O] {
	return &Collector[S, O]{
		crawler: newCrawler[S](opts...),
		scraper: scraper,
	}
}

// Crawler returns the underlying crawler.
func (c *Collector[S, O]) Crawler() *Crawler[S] {
	return c.crawler
}

// Visit seeds the crawl with rawURL.
func (c *Collector[S, O]) Visit(rawURL string) {
	c.crawler.Visit(rawURL)
}

// VisitWithState seeds the crawl with rawURL carrying state.
func (c *Collector[S, O]) VisitWithState(rawURL string, state S) {
	c.crawler.VisitWithState(rawURL, state)
}

// State returns the current driver state.
func (c *Collector[S, O]) State() DriverState {
	return c.crawler.State()
}

// Next returns the next output or crawl error. Per-request failures are
// returned as *Error[S] and the crawl continues; call Next again. Once
// nothing is queued, in flight or buffered, Next returns ErrDrained and
// keeps returning it. A done ctx interrupts the pull with ctx.Err() without
// ending the crawl.
func (c *Collector[S, O]) Next(ctx context.Context) (O, error) {
	var zero O
	cr := c.crawler
	if cr.isClosed() {
		return zero, ErrDrained
	}

	for {
		if ev, ok := cr.popReady(); ok {
			if ev.err != nil {
				cr.opts.metrics.observeError(ev.err.Kind)
				cr.setState(StateIdle)
				return zero, ev.err
			}
			out, err := c.deliver(ctx, ev.resp)
			if err != nil {
				return zero, err
			}
			if out != nil {
				return *out, nil
			}
			continue
		}

		cr.reap()
		if cr.hasReady() {
			continue
		}

		cr.setState(StateDispatching)
		wait, waiting := cr.dispatch(cr.opts.now())
		if cr.hasReady() {
			continue
		}

		if cr.inFlight == 0 && !waiting && cr.registry.Pending() == 0 {
			cr.logger.Debug("crawl drained")
			if err := cr.shutdown(); err != nil {
				return zero, err
			}
			return zero, ErrDrained
		}

		cr.setState(StateAwaiting)
		if err := cr.await(ctx, wait, waiting); err != nil {
			cr.setState(StateIdle)
			return zero, err
		}
	}
}

// deliver runs the scraper on resp. Requests visited by the scraper are one
// hop deeper than resp.
func (c *Collector[S, O]) deliver(ctx context.Context, resp *Response[S]) (*O, error) {
	cr := c.crawler
	cr.setState(StateDelivering)
	cr.setVisitDepth(resp.Depth + 1)
	defer func() {
		cr.setVisitDepth(0)
		cr.setState(StateIdle)
	}()

	out, err := c.scraper.Scrape(ctx, resp, cr)
	if err != nil {
		e := &Error[S]{
			Kind:     KindScrape,
			URL:      resp.URL,
			Depth:    resp.Depth,
			Err:      err,
			state:    resp.State,
			hasState: resp.HasState,
		}
		cr.opts.metrics.observeError(KindScrape)
		return nil, e
	}
	if out != nil {
		cr.opts.metrics.observeOutput()
	}
	return out, nil
}

// All returns the output sequence as an iterator. Iteration ends when the
// crawl drains or ctx is done; breaking out early closes the collector.
func (c *Collector[S, O]) All(ctx context.Context) iter.Seq2[O, error] {
	return func(yield func(O, error) bool) {
		for {
			out, err := c.Next(ctx)
			if errors.Is(err, ErrDrained) {
				return
			}
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				yield(out, err)
				_ = c.Close() //nolint:errcheck // fetch goroutines never fail
				return
			}
			if !yield(out, err) {
				_ = c.Close() //nolint:errcheck // fetch goroutines never fail
				return
			}
		}
	}
}

// Close cancels in-flight fetches, waits for their goroutines and discards
// queued work. Next returns ErrDrained afterwards. Close is idempotent and
// must not run concurrently with Next.
func (c *Collector[S, O]) Close() error {
	return c.crawler.shutdown()
}
