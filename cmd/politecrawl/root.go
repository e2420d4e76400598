// Package main provides the entry point for the politecrawl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for politecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "politecrawl",
		Short: "Polite, rate-limited web crawler",
		Long: `politecrawl crawls websites without hammering them.

Every domain gets its own request queue, released no faster than the
configured delay. robots.txt is honoured by default, requests are capped
per domain and globally, and the crawl can be restricted to an allow-list
or kept away from a block-list of domains.

Results are printed as they arrive and can be stored in a local SQLite
database for later reports.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
