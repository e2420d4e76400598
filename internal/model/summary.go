package model

import (
	"slices"
	"strings"
	"time"
)

// HostSummary aggregates the outcome of a crawl for one host.
type HostSummary struct {
	Host     string `json:"host"`
	Pages    int    `json:"pages"`
	Failures int    `json:"failures"`
	Bytes    int64  `json:"bytes"`
	MaxDepth int    `json:"max_depth"`
}

// Summary aggregates the pages and failures of a crawl.
//
// Example:
//
//	s := model.NewSummary(time.Now())
//	s.AddPage(page)
//	s.AddFailure(failure)
//	s.Finish(time.Now())
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	Pages    int   `json:"pages"`
	Failures int   `json:"failures"`
	Bytes    int64 `json:"bytes"`

	// Hosts is sorted by host name.
	Hosts []HostSummary `json:"hosts"`

	// FailuresByKind counts failures per error kind.
	FailuresByKind map[string]int `json:"failures_by_kind"`

	// StatusClasses counts pages per status class ("2xx", "4xx", ...).
	StatusClasses map[string]int `json:"status_classes"`
}

// NewSummary creates an empty summary of a crawl started at start.
func NewSummary(start time.Time) *Summary {
	return &Summary{
		StartedAt:      start,
		Hosts:          make([]HostSummary, 0),
		FailuresByKind: make(map[string]int),
		StatusClasses:  make(map[string]int),
	}
}

// AddPage counts page.
func (s *Summary) AddPage(page *Page) {
	s.Pages++
	s.Bytes += int64(page.Size)
	s.StatusClasses[page.StatusClass()]++

	h := s.host(page.Host)
	h.Pages++
	h.Bytes += int64(page.Size)
	h.MaxDepth = max(h.MaxDepth, page.Depth)
}

// AddFailure counts f.
func (s *Summary) AddFailure(f *Failure) {
	s.Failures++
	s.FailuresByKind[f.Kind]++
	s.host(f.Host).Failures++
}

// Finish records the end time of the crawl.
func (s *Summary) Finish(end time.Time) {
	s.FinishedAt = end
}

// Duration is the wall time of the crawl, or zero while it runs.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// SuccessRate is the share of requests that produced a 2xx page.
func (s *Summary) SuccessRate() float64 {
	total := s.Pages + s.Failures
	if total == 0 {
		return 0
	}
	return float64(s.StatusClasses["2xx"]) / float64(total)
}

// host returns the entry for name, inserting it in sorted position.
func (s *Summary) host(name string) *HostSummary {
	name = strings.ToLower(name)
	i, found := slices.BinarySearchFunc(s.Hosts, name, func(h HostSummary, target string) int {
		return strings.Compare(h.Host, target)
	})
	if !found {
		s.Hosts = slices.Insert(s.Hosts, i, HostSummary{Host: name})
	}
	return &s.Hosts[i]
}
