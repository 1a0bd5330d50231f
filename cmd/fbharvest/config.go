package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fbharvest/pkg/config"
	"fbharvest/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fbharvest configuration files.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (FBHARVEST_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'fbharvest.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# fbharvest configuration
#
# Every option can also be set with an FBHARVEST_ environment variable,
# for example FBHARVEST_COOKIES_FILE or FBHARVEST_DB_DSN.

browser:
  # Run Chromium without a window
  headless: true

  # JSON cookie export of a logged-in Facebook session
  cookies_file: "cookies.json"

  user_agent: ""
  navigation_timeout: 60s

  # How long to wait for the feed container after navigation
  feed_wait: 30s

harvest:
  # Posts accepted per run
  max_records: 10

  # Concurrent extraction workers (1-32)
  workers: 5

  # Scroll ceiling, and scrolls without new posts before the feed counts as exhausted
  max_scroll_attempts: 50
  no_growth_limit: 3

  # Wait for new posts after a scroll, and pause after they appear
  scroll_wait: 15s
  settle_delay: 1500ms

  # Least time between two scrolls, however fast the feed renders
  min_scroll_interval: 3s

  drain_poll: 100ms
  drain_timeout: 30s

  # Fields to extract; empty means all of:
  # content_text, post_author_name, post_author_profile_pic_url, post_image_url, posted_at
  fields: []

retry:
  max_attempts: 5
  initial_backoff: 1s
  max_backoff: 30s
  multiplier: 2.0

storage:
  # sqlite3 or postgres
  driver: "sqlite3"
  dsn: "fbharvest.db"

schedule:
  # Watch mode
  poll_interval: 10m
  group_delay: 30s
  runs_per_hour: 6

groups:
  - name: "Example group"
    url: "https://www.facebook.com/groups/123456789"

logging:
  # debug, info, warn, error
  level: "info"

  # Optional JSON log file; console output is always kept
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "fbharvest.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		return fmt.Errorf("%s exists", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Export your Facebook cookies to cookies.json and list your groups")
	fmt.Println("2. Run 'fbharvest config validate' to check the configuration")
	fmt.Println("3. Start with 'fbharvest harvest'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return fmt.Errorf("no configuration file found; specify one with --config")
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return err
	}

	var warnings []string
	if cfg.Browser.CookiesFile == "" {
		warnings = append(warnings, "no cookies_file set; harvests will hit the login page")
	} else if _, err := os.Stat(cfg.Browser.CookiesFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("cookies_file %s is not readable", cfg.Browser.CookiesFile))
	}
	if len(cfg.Groups) == 0 {
		warnings = append(warnings, "no groups configured; pass group urls on the command line")
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Groups: %d\n", len(cfg.Groups))
	fmt.Printf("  Max records per run: %d\n", cfg.Harvest.MaxRecords)
	fmt.Printf("  Workers: %d\n", cfg.Harvest.Workers)
	fmt.Printf("  Storage: %s (%s)\n", cfg.Storage.Driver, cfg.Storage.DSN)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
