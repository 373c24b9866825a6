package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/webharvest/webharvest/internal/config"
	"github.com/webharvest/webharvest/internal/model"
	"github.com/webharvest/webharvest/internal/scrape"
)

// NewBatchCmd creates the batch command.
func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Scrape many URLs concurrently with one selector map",
		Long: `Batch scrapes a list of URLs concurrently, applying the same ad-hoc
selectors to every page. Each URL is an independent single-page job:
one URL's failure never cancels the others, and the result order always
matches the input order.

The robots.txt cache and per-origin rate limiter are shared across the
whole pool, so URLs on the same origin stay politely spaced no matter
how many workers run.

URLs come from arguments, from --file (one URL per line, # comments
allowed), or both.

Examples:
  # 100 product pages, 10 at a time
  webharvest batch -f urls.txt -s title=h1 -s "price=.price"

  # Lower concurrency for a fragile site
  webharvest batch -f urls.txt -s title=h1 --concurrency 2`,
		Args: cobra.ArbitraryArgs,
		RunE: runBatchCmd,
	}

	cmd.Flags().StringP("file", "f", "", "File with one URL per line")
	cmd.Flags().StringArrayP("selector", "s", nil,
		"CSS selector as name=expression (repeatable)")
	cmd.Flags().StringArrayP("xpath", "x", nil,
		"XPath selector as name=expression (repeatable)")
	cmd.Flags().BoolP("repeat", "r", false,
		"Mark all selectors as repeating (one record per match)")
	cmd.Flags().Int("concurrency", 0,
		"Maximum URLs in flight at once (default from config)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file for scraper defaults (optional)")
	addOutputFlags(cmd)

	return cmd
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}
	return urls, nil
}

// runBatchCmd executes the batch command.
func runBatchCmd(cmd *cobra.Command, args []string) error {
	filePath, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	cssPairs, err := cmd.Flags().GetStringArray("selector")
	if err != nil {
		return err
	}
	xpathPairs, err := cmd.Flags().GetStringArray("xpath")
	if err != nil {
		return err
	}
	repeating, err := cmd.Flags().GetBool("repeat")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	opts, err := outputOptionsFrom(cmd)
	if err != nil {
		return err
	}

	urls := args
	if filePath != "" {
		fromFile, err := readURLFile(filePath)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return errors.New("no URLs given (pass them as arguments or via --file)")
	}

	if len(cssPairs) == 0 && len(xpathPairs) == 0 {
		return errors.New("no selectors given (use -s or -x)")
	}
	fields, err := parseSelectorPairs(cssPairs, model.KindCSS, repeating)
	if err != nil {
		return err
	}
	xpathFields, err := parseSelectorPairs(xpathPairs, model.KindXPath, repeating)
	if err != nil {
		return err
	}
	fields = append(fields, xpathFields...)

	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}
	if concurrency <= 0 {
		concurrency = cfg.Scraper.Concurrency
	}

	proto := cfg.NewTarget()
	proto.Fields = fields
	if err := proto.Fields.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(logger)
	defer cancel()

	db, err := openResultDB(opts, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	out, closeOut, err := opts.openDestination()
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // output flushed per write

	fmt.Fprintf(os.Stderr, "Scraping %d URL(s) (concurrency: %d)...\n",
		len(urls), concurrency)
	start := time.Now()

	batch := scrape.NewBatch(newRunner(cfg, logger),
		scrape.WithConcurrency(concurrency),
		scrape.WithBatchLogger(logger),
	)
	results := batch.Run(ctx, urls, proto)

	writer := opts.writerFor(out, fields.Names())
	var succeeded, partial, failed int
	for i := range results {
		result := &results[i]
		switch result.Outcome() {
		case model.OutcomeSuccess:
			succeeded++
		case model.OutcomePartial:
			partial++
		default:
			failed++
		}
		if _, err := writer.Write(result); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		saveResult(ctx, db, result, logger)
	}

	fmt.Fprintf(os.Stderr, "Batch finished in %s: %d ok, %d partial, %d failed\n",
		time.Since(start).Round(time.Millisecond), succeeded, partial, failed)

	if succeeded == 0 && partial == 0 {
		return errors.New("every URL in the batch failed")
	}
	return nil
}
