package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/politecrawl/internal/model"
)

// DefaultMaxListedFailures is how many failures the Markdown report lists
// individually.
const DefaultMaxListedFailures = 50

// MarkdownWriter outputs a Markdown summary of a crawl.
// This format is designed for documentation and sharing.
//
// Pages are only counted; failures are kept (up to a limit) so the summary
// can list them. Nothing is written until WriteSummary.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
//  1. Type-safe markdown generation
//  2. Support for tables, lists, and mermaid charts
//  3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	maxFailures int
	failures    []*model.Failure
	omitted     int
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter:  newBaseWriter(output),
		maxFailures: DefaultMaxListedFailures,
	}
}

// WritePage implements Writer. Pages only appear in the summary counts.
func (w *MarkdownWriter) WritePage(_ *model.Page) error {
	return nil
}

// WriteFailure keeps f for the failure table.
func (w *MarkdownWriter) WriteFailure(f *model.Failure) error {
	if len(w.failures) >= w.maxFailures {
		w.omitted++
		return nil
	}
	w.failures = append(w.failures, f)
	return nil
}

// WriteSummary outputs the report in Markdown format.
func (w *MarkdownWriter) WriteSummary(s *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeAlert(md, s)
	w.writeHosts(md, s)
	w.writeStatusClasses(md, s)
	w.writeFailures(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl totals.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	finished := "running"
	if !s.FinishedAt.IsZero() {
		finished = s.FinishedAt.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", finished},
			{"Duration", s.Duration().Round(time.Millisecond).String()},
			{"Pages", strconv.Itoa(s.Pages)},
			{"Failures", strconv.Itoa(s.Failures)},
			{"Bytes", strconv.FormatInt(s.Bytes, 10)},
			{"Success Rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)},
		},
	})
	md.PlainText("")
}

// writeAlert writes an alert based on how the crawl went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	switch {
	case s.Pages == 0 && s.Failures == 0:
		md.Note("Nothing was crawled.")
	case s.Pages == 0:
		md.Cautionf("Every request failed (%d failure(s)).", s.Failures)
	case s.SuccessRate() < 0.5:
		md.Warningf("Less than half of the requests succeeded (%d failure(s)).", s.Failures)
	case s.Failures > 0:
		md.Importantf("%d request(s) failed; see Failures below.", s.Failures)
	default:
		md.Tip("Every request succeeded.")
	}
	md.PlainText("")
}

// writeHosts writes the per-host table.
func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, s *model.Summary) {
	md.H2("Hosts")
	md.PlainText("")

	if len(s.Hosts) == 0 {
		md.PlainText("No hosts were contacted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(s.Hosts))
	for _, h := range s.Hosts {
		rows = append(rows, []string{
			"`" + h.Host + "`",
			strconv.Itoa(h.Pages),
			strconv.Itoa(h.Failures),
			strconv.FormatInt(h.Bytes, 10),
			strconv.Itoa(h.MaxDepth),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Pages", "Failures", "Bytes", "Max Depth"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeStatusClasses writes a mermaid pie chart of page status classes.
func (w *MarkdownWriter) writeStatusClasses(md *markdown.Markdown, s *model.Summary) {
	if s.Pages == 0 {
		return
	}

	md.H2("Status Codes")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Status Class"),
		piechart.WithShowData(true),
	)
	for _, class := range slices.Sorted(maps.Keys(s.StatusClasses)) {
		if n := s.StatusClasses[class]; n > 0 {
			chart.LabelAndIntValue(class, uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes failure counts per kind and the listed failures.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *model.Summary) {
	md.H2("Failures")
	md.PlainText("")

	if s.Failures == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	kinds := slices.Sorted(maps.Keys(s.FailuresByKind))
	items := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		items = append(items, fmt.Sprintf("`%s`: %d", kind, s.FailuresByKind[kind]))
	}
	md.BulletList(items...)
	md.PlainText("")

	if len(w.failures) == 0 {
		return
	}

	rows := make([][]string, 0, len(w.failures))
	for _, f := range w.failures {
		detail := f.Reason
		if f.StatusCode != 0 {
			detail = strconv.Itoa(f.StatusCode)
		}
		target := f.URL
		if target == "" {
			target = f.Host
		}
		rows = append(rows, []string{
			f.Kind,
			truncateString(target, 60),
			orDash(detail),
			orDash(truncateString(f.Referrer, 40)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Target", "Detail", "Referrer"},
		Rows:   rows,
	})
	md.PlainText("")

	if w.omitted > 0 {
		md.PlainTextf("%d more failure(s) not listed.", w.omitted)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [politecrawl](https://github.com/nao1215/politecrawl)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
