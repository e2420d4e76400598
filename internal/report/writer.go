package report

import (
	"errors"
	"io"

	"github.com/nao1215/politecrawl/internal/model"
)

// Writer defines the interface for crawl output.
// Records are written as the crawl produces them; the summary is written
// once, after the crawl has drained.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or both with
// the same crawl loop.
type Writer interface {
	// WritePage outputs one fetched page.
	WritePage(page *model.Page) error

	// WriteFailure outputs one crawl error.
	WriteFailure(f *model.Failure) error

	// WriteSummary outputs the end-of-crawl summary.
	// Returns the number of bytes written and any error encountered.
	WriteSummary(s *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer; we write records, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WritePage outputs page to every Writer and joins their errors.
func (m *MultiWriter) WritePage(page *model.Page) error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.WritePage(page))
	}
	return errors.Join(errs...)
}

// WriteFailure outputs f to every Writer and joins their errors.
func (m *MultiWriter) WriteFailure(f *model.Failure) error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.WriteFailure(f))
	}
	return errors.Join(errs...)
}

// WriteSummary outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteSummary(s *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
