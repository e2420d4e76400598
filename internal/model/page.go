package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageState is the traversal state carried by every request of a crawl.
// It survives the asynchronous fetch and comes back with the response or
// with the error that replaced it.
type PageState struct {
	// Referrer is the URL of the page the link was found on.
	// Seeds have no referrer.
	Referrer string `json:"referrer,omitempty"`
}

// Page is the record produced for one fetched page.
//
// Design decision: We keep the body digest rather than the body because:
//  1. Records are written as JSON lines and to SQLite for every page
//  2. The digest is enough to spot duplicate content across URLs
type Page struct {
	// URL is the final URL of the page after redirects.
	URL string `json:"url"`

	// Host is the lower-cased host name of URL.
	Host string `json:"host"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Depth is the number of link hops from a seed.
	Depth int `json:"depth"`

	// Title is the page title extracted from <title> tag.
	// Empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// ContentType is the media type of the response.
	ContentType string `json:"content_type,omitempty"`

	// Size is the number of body bytes read.
	Size int `json:"size"`

	// LinkCount is the number of distinct links on the page.
	LinkCount int `json:"link_count"`

	// Followed is the number of those links that were enqueued.
	Followed int `json:"followed"`

	// Hash is the SHA-256 hash of the body. It is empty when the body was
	// truncated, since a partial digest says nothing about duplicates.
	Hash string `json:"hash,omitempty"`

	// Truncated reports whether the body was cut at the size limit.
	Truncated bool `json:"truncated,omitempty"`

	// Referrer is the page this one was linked from.
	Referrer string `json:"referrer,omitempty"`

	// FetchedAt is when the page was scraped.
	FetchedAt time.Time `json:"fetched_at"`

	// Raw contains the response body. It is never serialized.
	Raw []byte `json:"-"`
}

// ComputeHash calculates Hash and Size from Raw.
func (p *Page) ComputeHash() {
	p.Size = len(p.Raw)
	if len(p.Raw) == 0 || p.Truncated {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(hash[:])
}

// IsSuccess reports whether the page was served with a 2xx status.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// StatusClass returns "2xx", "3xx", ... for the status code.
func (p *Page) StatusClass() string {
	if p.StatusCode < 100 || p.StatusCode > 599 {
		return "other"
	}
	return string(rune('0'+p.StatusCode/100)) + "xx"
}
