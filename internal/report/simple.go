package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/politecrawl/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display: one line
// per page or failure while the crawl runs, then a summary block.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
//  1. It works in all terminals without compatibility issues
//  2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// quiet suppresses the per-record lines.
	quiet bool

	// verbose adds the referrer and failure message to each line.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithQuiet only writes the summary.
func WithQuiet(quiet bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.quiet = quiet
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WritePage writes "[status] d=depth url  title".
func (w *SimpleWriter) WritePage(page *model.Page) error {
	if w.quiet {
		return nil
	}
	line := fmt.Sprintf("[%d] d=%d %s", page.StatusCode, page.Depth, page.URL)
	if page.Title != "" {
		line += "  " + page.Title
	}
	if w.verbose && page.Referrer != "" {
		line += "  (from " + page.Referrer + ")"
	}
	_, err := fmt.Fprintln(w.output, line)
	return err
}

// WriteFailure writes "[ERR] kind target detail".
func (w *SimpleWriter) WriteFailure(f *model.Failure) error {
	if w.quiet {
		return nil
	}
	target := f.URL
	if target == "" {
		target = f.Host
	}
	line := fmt.Sprintf("[ERR] %s %s", f.Kind, target)
	switch {
	case f.StatusCode != 0:
		line += fmt.Sprintf(" (status %d)", f.StatusCode)
	case f.Reason != "":
		line += " (" + f.Reason + ")"
	}
	if w.verbose && f.Message != "" {
		line += "\n      " + f.Message
	}
	_, err := fmt.Fprintln(w.output, line)
	return err
}

// WriteSummary writes the summary block.
func (w *SimpleWriter) WriteSummary(s *model.Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Duration:      %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "Pages:         %d\n", s.Pages)
	fmt.Fprintf(&sb, "Failures:      %d\n", s.Failures)
	fmt.Fprintf(&sb, "Bytes:         %d\n", s.Bytes)
	fmt.Fprintf(&sb, "Success Rate:  %.1f%%\n", s.SuccessRate()*100)
	sb.WriteString("\n")

	if len(s.Hosts) > 0 {
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\nHOSTS\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")
		for _, h := range s.Hosts {
			fmt.Fprintf(&sb, "  %-40s pages=%-6d failures=%-6d depth<=%d\n", h.Host, h.Pages, h.Failures, h.MaxDepth)
		}
		sb.WriteString("\n")
	}

	if s.Failures > 0 {
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\nFAILURES\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")
		for _, kind := range slices.Sorted(maps.Keys(s.FailuresByKind)) {
			fmt.Fprintf(&sb, "  %-24s %d\n", kind, s.FailuresByKind[kind])
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}
