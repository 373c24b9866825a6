package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webharvest/webharvest/internal/config"
	"github.com/webharvest/webharvest/internal/model"
)

// defaultConfigFile is the configuration file looked up when --config is
// not given.
const defaultConfigFile = "webharvest.yaml"

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [target...]",
		Short: "Scrape configured targets",
		Long: `Scrape runs the named targets from the configuration file. With no
arguments, every configured target is scraped in turn.

Each run checks robots.txt before fetching, spaces same-origin requests
by the configured rate limit, retries transient failures with
exponential backoff, and follows pagination up to the target's page
budget. Partial results are kept when a run stops early.

Examples:
  # Scrape every target in webharvest.yaml
  webharvest scrape

  # Scrape one target, writing CSV to a file
  webharvest scrape books -o books.csv

  # JSON output for a custom config file
  webharvest scrape -c shop.yaml prices --json`,
		Args: cobra.ArbitraryArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().StringP("config", "c", defaultConfigFile,
		"Configuration file path")
	addOutputFlags(cmd)

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	opts, err := outputOptionsFrom(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	names := args
	if len(names) == 0 {
		names = cfg.TargetNames()
	}
	if len(names) == 0 {
		return errors.New("no targets configured (add targets to the config file or run `webharvest init`)")
	}

	// Resolve every target up front: one bad name or definition fails
	// the invocation before any network activity.
	targets := make([]*model.Target, 0, len(names))
	for _, name := range names {
		target, err := cfg.Target(name)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		targets = append(targets, target)
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

	runner := newRunner(cfg, logger)

	var anyRecords bool
	var lastFailure *model.Failure
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}

		result := runner.Run(ctx, target)
		summarize(result)

		writer := opts.writerFor(out, target.Fields.Names())
		if _, err := writer.Write(result); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		saveResult(ctx, db, result, logger)

		if len(result.Records) > 0 {
			anyRecords = true
		}
		if result.Failure != nil {
			lastFailure = result.Failure
		}
	}

	// Exit non-zero only when nothing at all was harvested: partial
	// results count as (qualified) success.
	if !anyRecords && lastFailure != nil {
		return fmt.Errorf("all runs failed, last failure: %s (%s)",
			lastFailure.Kind, lastFailure.Detail)
	}
	return nil
}
