package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webharvest/webharvest/internal/config"
	"github.com/webharvest/webharvest/internal/model"
)

// NewGrabCmd creates the grab command.
func NewGrabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grab --url <url> -s name=selector...",
		Short: "Scrape one URL with ad-hoc selectors",
		Long: `Grab extracts records from a single URL without a configuration file.
Selectors are given as name=expression pairs; robots.txt compliance,
rate limiting, and retries apply exactly as in configured runs.

Examples:
  # First match per selector, one record
  webharvest grab -u https://example.com/book -s title=h1 -s "price=.price"

  # One record per match: repeating selectors are zipped by position
  webharvest grab -u https://example.com/books -r \
      -s "title=article h3" -s "price=article .price"

  # XPath selectors and pagination
  webharvest grab -u https://example.com/books -r \
      -x "title=//article/h3" --next "li.next a" --max-pages 3`,
		RunE: runGrabCmd,
	}

	cmd.Flags().StringP("url", "u", "", "URL to scrape (required)")
	cmd.Flags().StringArrayP("selector", "s", nil,
		"CSS selector as name=expression (repeatable)")
	cmd.Flags().StringArrayP("xpath", "x", nil,
		"XPath selector as name=expression (repeatable)")
	cmd.Flags().BoolP("repeat", "r", false,
		"Mark all selectors as repeating (one record per match)")
	cmd.Flags().String("next", "",
		"CSS selector for the next-page link (enables pagination)")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum pages to follow when --next is set")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file for scraper defaults (optional)")
	addOutputFlags(cmd)

	if err := cmd.MarkFlagRequired("url"); err != nil {
		panic(err)
	}

	return cmd
}

// parseSelectorPairs converts name=expression flag values into fields.
func parseSelectorPairs(pairs []string, kind model.SelectorKind, repeating bool) (model.SelectorMap, error) {
	fields := make(model.SelectorMap, 0, len(pairs))
	for _, pair := range pairs {
		name, expr, ok := strings.Cut(pair, "=")
		if !ok || name == "" || expr == "" {
			return nil, fmt.Errorf("invalid selector %q (expected name=expression)", pair)
		}
		fields = append(fields, model.Field{
			Name: name,
			Selector: model.Selector{
				Expr:      expr,
				Kind:      kind,
				Repeating: repeating,
			},
		})
	}
	return fields, nil
}

// runGrabCmd executes the grab command.
func runGrabCmd(cmd *cobra.Command, _ []string) error {
	url, err := cmd.Flags().GetString("url")
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
	nextSel, err := cmd.Flags().GetString("next")
	if err != nil {
		return err
	}
	maxPages, err := cmd.Flags().GetInt("max-pages")
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

	if len(cssPairs) == 0 && len(xpathPairs) == 0 {
		return errors.New("no selectors given (use -s or -x)")
	}

	// CSS selectors come first in column order, then XPath selectors,
	// each group in flag order.
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

	target := cfg.NewTarget()
	target.Name = url
	target.BaseURL = url
	target.Fields = fields
	if nextSel != "" {
		target.Pagination = model.PaginationRule{
			Enabled:      true,
			NextSelector: model.Selector{Expr: nextSel},
			MaxPages:     maxPages,
		}
	}
	if err := target.Validate(); err != nil {
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

	result := newRunner(cfg, logger).Run(ctx, &target)
	summarize(result)

	if _, err := opts.writerFor(out, target.Fields.Names()).Write(result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	saveResult(ctx, db, result, logger)

	if result.Outcome() == model.OutcomeFailure {
		return fmt.Errorf("run failed: %s (%s)", result.Failure.Kind, result.Failure.Detail)
	}
	return nil
}
