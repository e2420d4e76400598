package model

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
)

// Failure is the record of a request that produced an error instead of a
// page: a rejection, a failed fetch or a scraper error.
type Failure struct {
	// URL is the request URL. Empty for robots.txt failures.
	URL string `json:"url,omitempty"`

	// Host is the host the request targeted.
	Host string `json:"host"`

	// Kind is the error kind, e.g. "disallowed_request".
	Kind string `json:"kind"`

	// Reason explains a disallowed request.
	Reason string `json:"reason,omitempty"`

	// StatusCode is set for non-success responses.
	StatusCode int `json:"status_code,omitempty"`

	// Depth is the depth of the failed request.
	Depth int `json:"depth"`

	// Referrer is the page the failed link was found on.
	Referrer string `json:"referrer,omitempty"`

	// Message is the full error text.
	Message string `json:"message"`

	// Timestamp is when the failure was observed.
	Timestamp time.Time `json:"timestamp"`
}

// FailureFromError converts a crawl error into a Failure record.
// It returns false when err is not a per-request crawl error.
func FailureFromError(err error, at time.Time) (*Failure, bool) {
	var cerr *crawler.Error[PageState]
	if !errors.As(err, &cerr) {
		return nil, false
	}

	f := &Failure{
		Host:       cerr.Host,
		Kind:       cerr.Kind.String(),
		StatusCode: cerr.StatusCode,
		Depth:      cerr.Depth,
		Message:    cerr.Error(),
		Timestamp:  at,
	}
	if cerr.Reason != crawler.ReasonNone {
		f.Reason = cerr.Reason.String()
	}
	if cerr.URL != nil {
		f.URL = cerr.URL.String()
		if f.Host == "" {
			f.Host = hostOf(cerr.URL)
		}
	}
	if state, ok := cerr.State(); ok {
		f.Referrer = state.Referrer
	}
	return f, true
}

func hostOf(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}
