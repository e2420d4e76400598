package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/report"
	"github.com/spf13/cobra"
)

// duplicateGroup is a set of URLs that served the same body.
type duplicateGroup struct {
	Hash string   `json:"hash"`
	URLs []string `json:"urls"`
}

// NewReportCmd creates the report command.
// This command reads the results stored by "crawl --save".
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report on crawl results stored in the database",
		Long: `Report reads the pages and failures saved by 'politecrawl crawl --save'.

Without flags it prints a summary of everything stored: pages and failures
per host, status codes and the most recent failures.

Examples:
  # Summary of every stored crawl
  politecrawl report

  # List the stored pages of one host
  politecrawl report --pages --host example.com

  # List failures rejected by robots.txt or the domain lists
  politecrawl report --failures --kind disallowed_request

  # Find the same document served under several URLs
  politecrawl report --duplicates

  # Markdown summary
  politecrawl report --markdown`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	// Listing flags
	cmd.Flags().BoolP("pages", "P", false,
		"List stored pages")
	cmd.Flags().BoolP("failures", "F", false,
		"List stored failures")
	cmd.Flags().Bool("duplicates", false,
		"List URLs that returned identical content")
	cmd.Flags().StringP("host", "H", "",
		"Only list pages of this host (with --pages)")
	cmd.Flags().StringP("kind", "k", "",
		"Only list failures of this kind (with --failures)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Database directory")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	listPages, err := flags.GetBool("pages")
	if err != nil {
		return err
	}
	listFailures, err := flags.GetBool("failures")
	if err != nil {
		return err
	}
	listDuplicates, err := flags.GetBool("duplicates")
	if err != nil {
		return err
	}
	host, err := flags.GetString("host")
	if err != nil {
		return err
	}
	kind, err := flags.GetString("kind")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if countTrue(listPages, listFailures, listDuplicates) > 1 {
		return errors.New("--pages, --failures and --duplicates cannot be used together")
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no crawl data found in %s (run 'politecrawl crawl --save' first)", dbDir)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listDuplicates {
		return reportDuplicates(ctx, db, out, jsonOutput)
	}

	var w report.Writer
	switch {
	case jsonOutput:
		w = report.NewJSONLinesWriter(out)
	case markdownOutput:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(getVerboseFlag(cmd)))
	}

	switch {
	case listPages:
		return reportPages(ctx, db, w, host)
	case listFailures:
		return reportFailures(ctx, db, w, kind)
	default:
		return reportSummary(ctx, db, w)
	}
}

// reportPages writes the stored pages of host.
func reportPages(ctx context.Context, db *database.CrawlDB, w report.Writer, host string) error {
	pages, err := db.ListPages(ctx, host)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if err := w.WritePage(page); err != nil {
			return err
		}
	}
	return nil
}

// reportFailures writes the stored failures of kind.
func reportFailures(ctx context.Context, db *database.CrawlDB, w report.Writer, kind string) error {
	failures, err := db.ListFailures(ctx, kind)
	if err != nil {
		return err
	}
	for _, f := range failures {
		if err := w.WriteFailure(f); err != nil {
			return err
		}
	}
	return nil
}

// reportSummary writes the summary of everything stored. Failures are fed
// first so formats that list them (Markdown) can do so.
func reportSummary(ctx context.Context, db *database.CrawlDB, w report.Writer) error {
	summary, err := db.Summary(ctx)
	if err != nil {
		return err
	}

	// Only Markdown lists failures inside the summary; the line formats
	// would print every stored failure before it.
	if _, ok := w.(*report.MarkdownWriter); ok {
		failures, err := db.ListFailures(ctx, "")
		if err != nil {
			return err
		}
		for _, f := range failures {
			if err := w.WriteFailure(f); err != nil {
				return err
			}
		}
	}

	_, err = w.WriteSummary(summary)
	return err
}

// reportDuplicates lists the groups of URLs that share a content hash.
func reportDuplicates(ctx context.Context, db *database.CrawlDB, out io.Writer, jsonOutput bool) error {
	pages, err := db.ListPages(ctx, "")
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	groups := make([]duplicateGroup, 0)
	for _, page := range pages {
		if page.Hash == "" || seen[page.Hash] {
			continue
		}
		seen[page.Hash] = true

		urls, err := db.PagesWithHash(ctx, page.Hash)
		if err != nil {
			return err
		}
		if len(urls) > 1 {
			groups = append(groups, duplicateGroup{Hash: page.Hash, URLs: urls})
		}
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(groups)
	}

	if len(groups) == 0 {
		_, err := fmt.Fprintln(out, "No duplicate content found.")
		return err
	}
	for _, g := range groups {
		if _, err := fmt.Fprintf(out, "%s (%d URLs)\n  %s\n", shortHash(g.Hash), len(g.URLs), strings.Join(g.URLs, "\n  ")); err != nil {
			return err
		}
	}
	return nil
}

// shortHash abbreviates a hex digest for display.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func countTrue(values ...bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
