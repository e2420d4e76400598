package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/politecrawl/internal/model"
)

// Record types of a JSON lines stream.
const (
	RecordPage    = "page"
	RecordFailure = "failure"
	RecordSummary = "summary"
)

// Record is one line of JSON output. Exactly one of Page, Failure and
// Summary is set, as named by Type.
type Record struct {
	Type    string         `json:"type"`
	Page    *model.Page    `json:"page,omitempty"`
	Failure *model.Failure `json:"failure,omitempty"`
	Summary *model.Summary `json:"summary,omitempty"`
}

// JSONLinesWriter outputs one JSON object per line.
// This format is designed for tool integration: it can be piped to jq and
// processed while the crawl is still running.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
//  1. Records are small and flat
//  2. json.Encoder already writes one value per line
type JSONLinesWriter struct {
	baseWriter

	enc *json.Encoder

	// failures controls whether failure records are written.
	failures bool

	// summary controls whether the closing summary record is written.
	summary bool
}

// JSONWriterOption configures a JSONLinesWriter.
type JSONWriterOption func(*JSONLinesWriter)

// WithFailures enables failure records. Enabled by default.
func WithFailures(enabled bool) JSONWriterOption {
	return func(w *JSONLinesWriter) {
		w.failures = enabled
	}
}

// WithSummary enables the closing summary record. Enabled by default.
func WithSummary(enabled bool) JSONWriterOption {
	return func(w *JSONLinesWriter) {
		w.summary = enabled
	}
}

// NewJSONLinesWriter creates a JSONLinesWriter that outputs to the given writer.
func NewJSONLinesWriter(output io.Writer, opts ...JSONWriterOption) *JSONLinesWriter {
	w := &JSONLinesWriter{
		baseWriter: newBaseWriter(output),
		enc:        json.NewEncoder(output),
		failures:   true,
		summary:    true,
	}
	w.enc.SetEscapeHTML(false)

	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WritePage writes a page record.
func (w *JSONLinesWriter) WritePage(page *model.Page) error {
	return w.enc.Encode(Record{Type: RecordPage, Page: page})
}

// WriteFailure writes a failure record unless failures are disabled.
func (w *JSONLinesWriter) WriteFailure(f *model.Failure) error {
	if !w.failures {
		return nil
	}
	return w.enc.Encode(Record{Type: RecordFailure, Failure: f})
}

// WriteSummary writes the summary record unless it is disabled.
func (w *JSONLinesWriter) WriteSummary(s *model.Summary) (int, error) {
	if !w.summary {
		return 0, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Record{Type: RecordSummary, Summary: s}); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
