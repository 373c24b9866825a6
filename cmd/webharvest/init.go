package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/webharvest/webharvest/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a webharvest configuration file",
		Long: `Init creates a webharvest.yaml configuration file in the current
directory with a documented example target.

Examples:
  # Create webharvest.yaml in the current directory
  webharvest init

  # Create the config file at a specific path
  webharvest init -o configs/shop.yaml

  # Overwrite an existing file
  webharvest init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", defaultConfigFile,
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

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, []byte(config.Example), 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to configure your targets:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - base_url and the selector map per target")
	fmt.Fprintln(cmd.OutOrStdout(), "  - pagination (next_selector, max_pages)")
	fmt.Fprintln(cmd.OutOrStdout(), "  - rate limits, timeouts, and headers")

	return nil
}
