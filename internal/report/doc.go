// Package report provides crawl output in several formats.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONLinesWriter: One JSON record per page or failure for tool integration
//   - MarkdownWriter: A Markdown summary for documentation and sharing
//
// Design decision: We separate output from the records themselves (which
// are in the model package), so new formats never touch the crawl loop.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
