package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webharvest/webharvest/internal/config"
	"github.com/webharvest/webharvest/internal/log"
	"github.com/webharvest/webharvest/internal/model"
	"github.com/webharvest/webharvest/internal/ratelimit"
	"github.com/webharvest/webharvest/internal/robots"
	"github.com/webharvest/webharvest/internal/scrape"
	"github.com/webharvest/webharvest/internal/storage"
)

// outputOptions holds the output flag values shared by the scrape,
// grab, and batch commands.
type outputOptions struct {
	// jsonOut selects JSON output instead of CSV.
	jsonOut bool

	// markdownOut selects a Markdown summary instead of CSV.
	markdownOut bool

	// outputPath writes output to a file instead of stdout.
	outputPath string

	// noDB skips saving results to the local run-history database.
	noDB bool
}

// addOutputFlags registers the shared output flags on a command.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown; default is CSV)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Skip saving results to the local run-history database")
}

// outputOptionsFrom reads the shared output flags from a command.
func outputOptionsFrom(cmd *cobra.Command) (*outputOptions, error) {
	var opts outputOptions
	var err error

	if opts.jsonOut, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdownOut, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.outputPath, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if opts.noDB, err = cmd.Flags().GetBool("no-db"); err != nil {
		return nil, err
	}

	if opts.jsonOut && opts.markdownOut {
		return nil, fmt.Errorf("--json and --markdown are mutually exclusive")
	}
	return &opts, nil
}

// openDestination opens the output destination: the configured file, or
// stdout with a no-op closer.
func (o *outputOptions) openDestination() (io.Writer, func() error, error) {
	if o.outputPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(o.outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// 0600: scraped data may come from gated pages.
	f, err := os.OpenFile(o.outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// writerFor builds the storage writer for the selected format. columns
// fixes CSV column order so header rows are stable even for runs that
// produced no records.
func (o *outputOptions) writerFor(out io.Writer, columns []string) storage.Writer {
	switch {
	case o.jsonOut:
		return storage.NewJSONWriter(out, storage.WithPrettyPrint())
	case o.markdownOut:
		return storage.NewMarkdownWriter(out)
	default:
		return storage.NewCSVWriter(out, storage.WithColumns(columns))
	}
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

// setupLogger creates the sanitizing structured logger and installs it
// as the slog default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := log.NewSecureLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled by SIGINT/SIGTERM so runs
// shut down gracefully and keep their partial results.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// newRunner assembles the scrape stack: one HTTP client, one robots
// guard, and one rate limiter shared by every run of the invocation.
func newRunner(cfg *config.Config, logger *slog.Logger) *scrape.Runner {
	// Per-request timeouts come from target config via the fetcher, not
	// the client, so one client can serve targets with different budgets.
	client := &http.Client{}

	guard := robots.NewGuard(client,
		robots.WithUserAgent(cfg.Scraper.UserAgent),
		robots.WithLogger(logger),
	)
	limiter := ratelimit.New(cfg.Scraper.RateLimit.Duration())

	return scrape.NewRunner(client, guard, limiter,
		scrape.WithLogger(logger),
		scrape.WithUserAgent(cfg.Scraper.UserAgent),
		scrape.WithMaxBodySize(cfg.Scraper.MaxBodySize),
	)
}

// openResultDB opens the run-history database in the XDG data directory.
// Returns nil when saving is disabled.
func openResultDB(o *outputOptions, logger *slog.Logger) (*storage.ResultDB, error) {
	if o.noDB {
		return nil, nil
	}
	db, err := storage.Open(config.XDGDataDir(), storage.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}
	logger.Info("result database opened", "dir", config.XDGDataDir())
	return db, nil
}

// saveResult saves a run result to the database if enabled.
// If db is nil, this function is a no-op.
func saveResult(ctx context.Context, db *storage.ResultDB, result *model.RunResult, logger *slog.Logger) {
	if db == nil {
		return
	}
	if _, err := db.SaveResult(ctx, result); err != nil {
		logger.Error("failed to save run result", "target", result.Target, "error", err)
		return
	}
	logger.Info("run result saved", "target", result.Target)
}

// summarize prints the one-line human summary of a finished run to
// stderr, keeping stdout clean for record output.
func summarize(result *model.RunResult) {
	switch result.Outcome() {
	case model.OutcomeSuccess:
		fmt.Fprintf(os.Stderr, "%s: %d record(s) from %d page(s) in %s\n",
			result.Target, len(result.Records), result.PagesVisited,
			result.Elapsed.Round(1e6))
	case model.OutcomePartial:
		fmt.Fprintf(os.Stderr, "%s: partial, %d record(s) from %d page(s); stopped: %s (%s)\n",
			result.Target, len(result.Records), result.PagesVisited,
			result.Failure.Kind, result.Failure.Detail)
	default:
		fmt.Fprintf(os.Stderr, "%s: failed: %s (%s)\n",
			result.Target, result.Failure.Kind, result.Failure.Detail)
	}
}
