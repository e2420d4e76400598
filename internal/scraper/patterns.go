package scraper

import (
	"net/url"
	"path"
	"strings"
)

// Patterns decides which links are followed by matching URL paths against
// glob patterns.
//
// Logic:
//  1. If the path matches any Ignore pattern, the link is not followed
//  2. If Follow is set and the path matches none of it, the link is not followed
//  3. Otherwise the link is followed
type Patterns struct {
	// Ignore lists paths never followed, e.g. "/admin/*" or "*.pdf".
	Ignore []string

	// Follow restricts followed links to matching paths when non-empty.
	Follow []string
}

// IsZero reports whether no pattern is set.
func (p Patterns) IsZero() bool {
	return len(p.Ignore) == 0 && len(p.Follow) == 0
}

// Allows reports whether the link at rawURL should be followed.
func (p Patterns) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	target := u.Path
	if target == "" {
		target = "/"
	}

	for _, pattern := range p.Ignore {
		if MatchPattern(pattern, target) {
			return false
		}
	}
	if len(p.Follow) == 0 {
		return true
	}
	for _, pattern := range p.Follow {
		if MatchPattern(pattern, target) {
			return true
		}
	}
	return false
}

// MatchPattern reports whether a URL path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of characters within one segment
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//   - a leading "*." to match an extension anywhere
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func MatchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?/") {
		if strings.HasSuffix(urlPath, ext) {
			return true
		}
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Slash-free patterns also match the last path segment.
	if !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}
	return false
}
