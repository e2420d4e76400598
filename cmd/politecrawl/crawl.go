package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/httpclient"
	"github.com/nao1215/politecrawl/internal/log"
	"github.com/nao1215/politecrawl/internal/model"
	"github.com/nao1215/politecrawl/internal/pipeline"
	"github.com/nao1215/politecrawl/internal/report"
	"github.com/nao1215/politecrawl/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// metricsShutdownTimeout bounds the graceful stop of the metrics server.
const metricsShutdownTimeout = 5 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites politely starting from the given URLs",
		Long: `Crawl fetches the seed URLs and follows the links they contain.

Each domain has its own queue, released at most once per delay. robots.txt
is honoured unless --robots=false is given. Pages and errors are printed as
they arrive, followed by a summary once the crawl is done.

Examples:
  # Crawl a site, one request per second
  politecrawl crawl https://example.com/

  # Only crawl two domains, at most three hops from the seed
  politecrawl crawl --allow example.com --allow docs.example.com -d 3 https://example.com/

  # Crawl anything except an ad server, with a random 1-3s delay
  politecrawl crawl --disallow ads.example.com --delay 1s --max-delay 3s https://example.com/

  # Save results to the database and write a Markdown summary
  politecrawl crawl --save --markdown -o report.md https://example.com/

  # Route requests through a SOCKS5 proxy
  politecrawl crawl --proxy 127.0.0.1:1080 https://example.com/

Configuration file (.politecrawl) example:
  defaults:
    delay: 1s
  domains:
    example.com:
      random_delay: {min: 500ms, max: 2s}
      max_depth: 3`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Domain selection flags
	cmd.Flags().StringSliceP("allow", "a", nil,
		"Only crawl these domains (allow-list mode, repeatable)")
	cmd.Flags().StringSliceP("disallow", "x", nil,
		"Never crawl these domains (block-list mode, repeatable)")
	cmd.Flags().Bool("same-host", false,
		"Only follow links to the host of the page they were found on")

	// Politeness flags
	cmd.Flags().DurationP("delay", "D", config.DefaultDelay,
		"Pause between two requests to the same domain")
	cmd.Flags().Duration("max-delay", 0,
		"Upper bound of a random delay (delay is the lower bound)")
	cmd.Flags().IntP("max-concurrent", "n", config.DefaultMaxConcurrent,
		"Maximum number of requests in flight across all domains")
	cmd.Flags().Bool("robots", true,
		"Honour robots.txt")
	cmd.Flags().String("robots-failure", config.DefaultRobotsFailurePolicy,
		"What to do when robots.txt cannot be fetched (allow or deny)")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of link hops from a seed (-1 = unlimited)")
	cmd.Flags().Bool("scrape-non-success", false,
		"Process non-2xx responses instead of reporting them as errors")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from each response")
	cmd.Flags().StringP("proxy", "p", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .politecrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON lines (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file path (creates directories if needed)")

	// Storage and observability flags
	cmd.Flags().BoolP("save", "s", false,
		"Save pages and failures to the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Database directory")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g., :9090)")
	cmd.Flags().Bool("json-log", false,
		"Write logs as JSON")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// Cancel the crawl on interrupt; the summary is still written.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Allow, err = flags.GetStringSlice("allow"); err != nil {
		return nil, err
	}
	if cfg.Disallow, err = flags.GetStringSlice("disallow"); err != nil {
		return nil, err
	}
	if cfg.SameHostOnly, err = flags.GetBool("same-host"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.MaxDelay, err = flags.GetDuration("max-delay"); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = flags.GetInt("max-concurrent"); err != nil {
		return nil, err
	}
	if cfg.RespectRobotsTxt, err = flags.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.RobotsFailurePolicy, err = flags.GetString("robots-failure"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.ScrapeNonSuccess, err = flags.GetBool("scrape-non-success"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddress, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}
	if cfg.JSONLog, err = flags.GetBool("json-log"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// If the user named a config file, it must exist. Otherwise a missing
	// file just means no per-domain settings.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Seeds = make([]string, 0, len(args))
	for _, arg := range args {
		cfg.Seeds = append(cfg.Seeds, normalizeSeed(arg))
	}

	return cfg, nil
}

// normalizeSeed adds https:// to bare host names.
func normalizeSeed(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" || strings.Contains(seed, "://") {
		return seed
	}
	return "https://" + seed
}

// setupLogger creates a structured logger based on the configuration.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.JSONLog {
		return log.NewJSONLogger(w, cfg.Verbose)
	}
	return log.NewLogger(w, cfg.Verbose)
}

// runCrawl executes the crawl. Results go to stdout (or the report file);
// progress lines go to stderr when the report is written to a file.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) (err error) {
	settings := cfg.Settings("")
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"allowed", cfg.AllowedDomains(),
		"disallowed", cfg.DisallowedDomains(),
		"robots", cfg.RespectRobotsTxt,
		"ignorePatterns", settings.IgnorePatterns,
	)

	client, err := httpclient.New(httpclient.Options{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if cfg.ProxyAddress != "" {
		if err := httpclient.CheckProxy(ctx, cfg.ProxyAddress, false); err != nil {
			return fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)", err, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	var metrics *crawler.Metrics
	if cfg.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		metrics, err = crawler.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		srv := serveMetrics(cfg.MetricsAddress, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to stop metrics server", "error", err)
			}
		}()
	}

	out, closeOut, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()
	writer := newReportWriter(cfg, out, stderr)

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	summaryStep := pipeline.NewSummaryStep(model.NewSummary(time.Now()))
	p.AddStep(summaryStep)

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		p.AddStep(pipeline.NewStoreStep(db))
	}
	p.AddStep(pipeline.NewReportStep(writer))

	s := scraper.New(
		scraper.WithHostPatterns(func(host string) scraper.Patterns {
			st := cfg.Settings(host)
			return scraper.Patterns{Ignore: st.IgnorePatterns, Follow: st.FollowPatterns}
		}),
		scraper.WithSameHostOnly(cfg.SameHostOnly),
		scraper.WithLogger(logger),
	)

	c := crawler.NewCollector[model.PageState, model.Page](s, cfg.CrawlerOptions(client, logger, metrics)...)
	defer c.Close()
	for _, seed := range cfg.Seeds {
		c.Visit(seed)
	}

	runErr := p.Run(ctx, c.All(ctx))
	switch {
	case runErr == nil:
	case ctx.Err() != nil && errors.Is(runErr, ctx.Err()):
		logger.Warn("crawl interrupted", "error", runErr)
		fmt.Fprintln(stderr, "Crawl interrupted, writing partial summary.")
		runErr = nil
	default:
		logger.Error("crawl finished with errors", "error", runErr)
	}

	summary := summaryStep.Summary()
	summary.Finish(time.Now())
	if _, err := writer.WriteSummary(summary); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write summary: %w", err))
	}

	stats := s.Stats()
	logger.Info("crawl finished",
		"pages", summary.Pages,
		"failures", summary.Failures,
		"linksFound", stats.LinksFound,
		"linksFollowed", stats.LinksFollowed,
		"duration", summary.Duration(),
	)

	return runErr
}

// newReportWriter picks the report format. When the report goes to a file,
// a plain text progress view is also written to stderr.
func newReportWriter(cfg *config.Config, out, stderr io.Writer) report.Writer {
	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONLinesWriter(out)
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	if cfg.ReportFile == "" {
		return w
	}
	return report.NewMultiWriter(w, report.NewSimpleWriter(stderr, report.WithVerbose(cfg.Verbose)))
}

// openOutput returns the report destination: path, or stdout when path is
// empty. The returned close function is always safe to call.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may list URLs with credentials in their query strings.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// serveMetrics exposes reg on addr/metrics in the background.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "address", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "address", addr)
	return srv
}
