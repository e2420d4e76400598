package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/model"
	"github.com/nao1215/politecrawl/internal/report"
)

// SummaryStep aggregates every item into a model.Summary.
type SummaryStep struct {
	mu      sync.Mutex
	summary *model.Summary
}

// NewSummaryStep creates a step that aggregates into summary.
func NewSummaryStep(summary *model.Summary) *SummaryStep {
	return &SummaryStep{summary: summary}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do counts the item.
func (s *SummaryStep) Do(_ context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case item.Page != nil:
		s.summary.AddPage(item.Page)
	case item.Failure != nil:
		s.summary.AddFailure(item.Failure)
	}
	return nil
}

// Summary returns the aggregated summary.
func (s *SummaryStep) Summary() *model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// StoreStep persists pages and failures to SQLite.
//
// Design decision: Storing is a separate step because:
//  1. It is optional (--save)
//  2. A database error must not stop the report output
type StoreStep struct {
	db *database.CrawlDB
}

// NewStoreStep creates a step writing to db.
func NewStoreStep(db *database.CrawlDB) *StoreStep {
	return &StoreStep{db: db}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do stores the item.
func (s *StoreStep) Do(ctx context.Context, item *Item) error {
	switch {
	case item.Page != nil:
		if err := s.db.InsertPage(ctx, item.Page); err != nil {
			return fmt.Errorf("store page: %w", err)
		}
	case item.Failure != nil:
		if err := s.db.InsertFailure(ctx, item.Failure); err != nil {
			return fmt.Errorf("store failure: %w", err)
		}
	}
	return nil
}

// ReportStep streams items to a report.Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a step writing to w.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the item.
func (s *ReportStep) Do(_ context.Context, item *Item) error {
	switch {
	case item.Page != nil:
		return s.writer.WritePage(item.Page)
	case item.Failure != nil:
		return s.writer.WriteFailure(item.Failure)
	}
	return nil
}
