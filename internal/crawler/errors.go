package crawler

import (
	"errors"
	"fmt"
	"net/url"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind,
// so callers can branch without knowing the state type:
//
//	if errors.Is(err, crawler.ErrReachedMaxDepth) { ... }
var (
	// ErrNoSuccessResponse matches non-2xx responses that were not delivered
	// to the scraper.
	ErrNoSuccessResponse = errors.New("received response with non 2xx status")

	// ErrFailedToBuildRequest matches requests that could not be constructed.
	ErrFailedToBuildRequest = errors.New("failed to construct request")

	// ErrInvalidRequest matches requests without an absolute http(s) URL.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrReachedMaxDepth matches requests produced beyond their domain's depth limit.
	ErrReachedMaxDepth = errors.New("reached max depth")

	// ErrRobotsTxt matches a failure to fetch a host's robots.txt.
	ErrRobotsTxt = errors.New("failed to fetch robots.txt")

	// ErrDisallowedRequest matches requests rejected by robots.txt or by the
	// domain allow/block list.
	ErrDisallowedRequest = errors.New("request disallowed")

	// ErrTransport matches network failures while fetching.
	ErrTransport = errors.New("transport failure")

	// ErrScrape matches errors returned by the scraper callback.
	ErrScrape = errors.New("scraper failed")

	// ErrDrained is returned by Collector.Next once the crawl has no queued
	// work, nothing in flight and nothing left to deliver.
	ErrDrained = errors.New("crawl drained")
)

// ErrorKind tags the variant of an *Error.
type ErrorKind int

const (
	// KindNoSuccessResponse is a non-2xx response on a domain that skips them.
	KindNoSuccessResponse ErrorKind = iota + 1

	// KindFailedToBuildRequest is a request that could not be constructed.
	KindFailedToBuildRequest

	// KindInvalidRequest is a request whose URL cannot be crawled.
	KindInvalidRequest

	// KindReachedMaxDepth is a request deeper than its domain allows.
	KindReachedMaxDepth

	// KindRobotsTxt is a host-level robots.txt fetch failure. It carries no state.
	KindRobotsTxt

	// KindDisallowedRequest is a request rejected by policy; see DisallowReason.
	KindDisallowedRequest

	// KindTransport is a network failure during the fetch.
	KindTransport

	// KindScrape is an error returned by the scraper for a delivered response.
	KindScrape
)

// String returns the stable name of the kind, used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindNoSuccessResponse:
		return "no_success_response"
	case KindFailedToBuildRequest:
		return "failed_to_build_request"
	case KindInvalidRequest:
		return "invalid_request"
	case KindReachedMaxDepth:
		return "reached_max_depth"
	case KindRobotsTxt:
		return "robots_txt"
	case KindDisallowedRequest:
		return "disallowed_request"
	case KindTransport:
		return "transport"
	case KindScrape:
		return "scrape"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNoSuccessResponse:
		return ErrNoSuccessResponse
	case KindFailedToBuildRequest:
		return ErrFailedToBuildRequest
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindReachedMaxDepth:
		return ErrReachedMaxDepth
	case KindRobotsTxt:
		return ErrRobotsTxt
	case KindDisallowedRequest:
		return ErrDisallowedRequest
	case KindTransport:
		return ErrTransport
	case KindScrape:
		return ErrScrape
	default:
		return nil
	}
}

// DisallowReason explains why a request was rejected by policy.
type DisallowReason int

const (
	// ReasonNone is the zero value for errors that are not disallowals.
	ReasonNone DisallowReason = iota

	// ReasonRobotsTxt means the host's robots.txt forbids the URL.
	ReasonRobotsTxt

	// ReasonUserConfig means the allow/block list forbids the domain.
	ReasonUserConfig
)

// String returns a human-readable reason.
func (r DisallowReason) String() string {
	switch r {
	case ReasonRobotsTxt:
		return "URL blocked by robots.txt"
	case ReasonUserConfig:
		return "URL blocked by user config"
	default:
		return "none"
	}
}

// Error is a per-request crawl failure. It always carries the state of the
// request that failed (except KindRobotsTxt, which is host level), so a
// caller never loses its place in a multi-step extraction.
//
// Design decision: We use one struct tagged with ErrorKind rather than one
// type per variant because:
//  1. The state accessor is uniform across every variant
//  2. A single errors.As target works for the whole taxonomy
//  3. Per-kind sentinels still give errors.Is matching
type Error[S any] struct {
	// Kind is the variant.
	Kind ErrorKind

	// Reason is set for KindDisallowedRequest.
	Reason DisallowReason

	// URL is the request URL, when one could be parsed.
	URL *url.URL

	// Host is set for KindRobotsTxt.
	Host string

	// StatusCode is set for KindNoSuccessResponse.
	StatusCode int

	// Depth is the depth of the failed request.
	Depth int

	// Err is the underlying cause, if any.
	Err error

	state    S
	hasState bool
}

// State returns the caller state carried by the failed request.
func (e *Error[S]) State() (S, bool) {
	return e.state, e.hasState
}

// IntoState returns the state, or the zero value when none was carried.
func (e *Error[S]) IntoState() S {
	return e.state
}

// Error implements the error interface.
func (e *Error[S]) Error() string {
	target := "<nil>"
	if e.URL != nil {
		target = e.URL.String()
	}

	var msg string
	switch e.Kind {
	case KindNoSuccessResponse:
		msg = fmt.Sprintf("received response with non 2xx status %d for %s", e.StatusCode, target)
	case KindFailedToBuildRequest:
		msg = fmt.Sprintf("failed to construct a request at depth %d", e.Depth)
	case KindInvalidRequest:
		msg = fmt.Sprintf("failed to process invalid request %s", target)
	case KindReachedMaxDepth:
		msg = fmt.Sprintf("reached max depth at %d for %s", e.Depth, target)
	case KindRobotsTxt:
		msg = fmt.Sprintf("failed to fetch robots.txt for host %s", e.Host)
	case KindDisallowedRequest:
		msg = fmt.Sprintf("rejected %s: %s", target, e.Reason)
	case KindTransport:
		msg = fmt.Sprintf("failed to fetch %s", target)
	case KindScrape:
		msg = fmt.Sprintf("scraper failed on %s", target)
	default:
		msg = "unknown crawl error"
	}

	if e.hasState {
		msg += fmt.Sprintf(" while carrying state: %+v", e.state)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error[S]) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind.
func (e *Error[S]) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// newRequestError builds an error that carries the state of req.
func newRequestError[S any](kind ErrorKind, req QueuedRequest[S], cause error) *Error[S] {
	e := &Error[S]{
		Kind:     kind,
		Depth:    req.Depth,
		Err:      cause,
		state:    req.State,
		hasState: req.HasState,
	}
	if req.Request != nil {
		e.URL = req.Request.URL
	}
	return e
}

// newDisallowedError builds a KindDisallowedRequest error.
func newDisallowedError[S any](reason DisallowReason, req QueuedRequest[S]) *Error[S] {
	e := newRequestError(KindDisallowedRequest, req, nil)
	e.Reason = reason
	return e
}

// newRobotsError builds the host-level KindRobotsTxt error.
func newRobotsError[S any](host string, cause error) *Error[S] {
	return &Error[S]{Kind: KindRobotsTxt, Host: host, Err: cause}
}
