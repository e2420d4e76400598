// Package crawler implements a polite, state-driven crawl engine.
//
// # Architecture
//
// A crawl is pulled, not pushed. The caller seeds a Collector and calls
// Next (or ranges over All); each pull advances the driver just far enough
// to produce one output record or one error:
//
//	seed → Registry.Route → RequestQueue → dispatch → robots → HTTP
//	     → Scraper → Visit (depth+1) → Registry.Route → ...
//
// Design decision: We run the driver on the consumer's goroutine and only
// the fetches on their own goroutines because:
//  1. Queues, counters and the cursor have a single owner and need no locks
//  2. Backpressure is natural: nothing is fetched faster than it is consumed
//     beyond the concurrency caps
//  3. Closing the collector has a single place to cancel and wait
//
// # Components
//
//   - RequestDelay: fixed, random or rate-limited pacing interval
//   - RequestQueue: per-domain FIFO released at most once per interval
//   - Registry: allow-list or block-list of domains and their configuration
//   - RobotsGate: cached robots.txt rules per host
//   - Crawler: dispatch, depth accounting and concurrency caps
//   - Collector: the output sequence and the Scraper callback
//   - Error: per-request failures that carry the caller's state
//
// # Politeness
//
//   - Each domain queue is paced by its own RequestDelay
//   - In-flight fetches are capped per domain and globally
//   - Requests deeper than a domain's MaxDepth are never fetched
//   - robots.txt is honoured per domain when enabled
//
// # Errors
//
// No error ends the crawl. Rejections, failed fetches and scraper errors
// are delivered by Next as *Error[S] values; the crawl ends only when it
// drains (ErrDrained) or the collector is closed.
package crawler
