// Package main is the CLI entry point for shieldmon.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shieldmon",
	Short: "Schedule-driven access shield",
	Long: `shieldmon restricts a selected set of applications, categories and
domains during daily time windows. Windows are enforced by a background
scheduler daemon even when this command is not running.

Typical setup:
  shieldmon authorize
  shieldmon select --preset steam --preset dota2
  shieldmon schedules set Morning=08:00-09:00 Evening=20:00-22:00
  shieldmon start`,
	Version:      Version,
	SilenceUsage: true,
}

var (
	dataDirFlag string
	configFlag  string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default depends on exec mode)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Machine-readable output for read commands")
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
