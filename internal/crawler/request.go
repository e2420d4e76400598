package crawler

import (
	"bytes"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// QueuedRequest is an outgoing fetch waiting in a domain queue.
// It pairs the HTTP request with the caller's traversal state and the depth
// at which it was produced (seeds are depth 0).
type QueuedRequest[S any] struct {
	// Request is the fully built HTTP request.
	Request *http.Request

	// State is the caller-defined traversal state. It is only meaningful
	// when HasState is true.
	State S

	// HasState reports whether the request was enqueued with a state.
	HasState bool

	// Depth is the number of callback hops from a seed.
	Depth int
}

// Host returns the lower-cased host name the request targets.
func (q QueuedRequest[S]) Host() string {
	if q.Request == nil || q.Request.URL == nil {
		return ""
	}
	return normalizeHost(q.Request.URL.Hostname())
}

// Response is a completed fetch together with the state of the request
// that produced it. It is the only channel through which traversal context
// survives an asynchronous fetch.
type Response[S any] struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the response body, cut at the configured size limit.
	Body []byte

	// Truncated reports whether Body was cut at the size limit.
	Truncated bool

	// URL is the final URL after redirects.
	URL *url.URL

	// Request is the request that was sent.
	Request *http.Request

	// Depth is the depth of the originating request.
	Depth int

	// State is the caller-defined traversal state; see HasState.
	State S

	// HasState reports whether the originating request carried a state.
	HasState bool
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response[S]) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the media type of the response without parameters.
func (r *Response[S]) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(r.Body)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mediaType
}

// IsHTML reports whether the response carries an HTML document.
func (r *Response[S]) IsHTML() bool {
	ct := r.ContentType()
	return ct == "text/html" || ct == "application/xhtml+xml" ||
		(ct == "" && bytes.Contains(bytes.ToLower(r.Body), []byte("<html")))
}

// ResolveReference resolves href against the final response URL.
// It returns an empty string for unparsable references.
func (r *Response[S]) ResolveReference(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if r.URL == nil {
		return ref.String()
	}
	return r.URL.ResolveReference(ref).String()
}

// normalizeHost lower-cases a host name and strips a port, IPv6 brackets
// and a trailing dot. Registry keys and request hosts both go through it.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

// normalizeAuthority lower-cases host[:port] and strips a trailing dot from
// the host. robots.txt rules are scoped per authority, so the port stays.
func normalizeAuthority(authority string) string {
	authority = strings.ToLower(strings.TrimSpace(authority))
	if h, port, err := net.SplitHostPort(authority); err == nil {
		return net.JoinHostPort(strings.TrimSuffix(h, "."), port)
	}
	return strings.TrimSuffix(authority, ".")
}
