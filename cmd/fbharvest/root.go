package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"fbharvest/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fbharvest",
	Short: "Incremental harvester for Facebook group feeds",
	Long: `fbharvest reads a Facebook group feed in a real browser session and stores
every post it has not seen before.

Each run scrolls the feed from the top, extracts posts concurrently and stops
at the newest post already stored for the group, at the requested count, or
when the feed stops growing.

A logged-in session is supplied as an exported cookie file (--cookies).`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		// keep stdout for the exported JSON
		if f := cmd.Flags().Lookup("export"); f != nil && f.Value.String() == "-" {
			ui.Output = os.Stderr
		}
		if quiet {
			logLevel = "error"
		} else if verbose {
			logLevel = "debug"
		}
		if !quiet && cmd.Name() != "help" && cmd.Name() != "show" {
			ui.PrintBanner()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: fbharvest.yaml or ~/.config/fbharvest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors and skip the banner")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.SetVersionTemplate(`fbharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
