package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/politecrawl.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new politecrawl configuration file",
		Long: `Initialize creates a new .politecrawl configuration file in the current directory.

The generated file includes:
- Default politeness settings (delay, robots.txt)
- Commented examples for per-domain delays, rates and depth limits
- Commented examples for allow-list and block-list crawls

Examples:
  # Create .politecrawl in current directory
  politecrawl init

  # Create config file at a specific path
  politecrawl init -o myconfig.yaml

  # Force overwrite existing file
  politecrawl init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/politecrawl.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-domain settings such as:")
	fmt.Fprintln(out, "  - Delay or rate limit between requests")
	fmt.Fprintln(out, "  - Crawl depth and concurrency")
	fmt.Fprintln(out, "  - URL patterns to ignore or follow")

	return nil
}
