package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the group harvester
type Config struct {
	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Harvest loop tuning
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Retry policy for live browser operations
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Record storage
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Watch mode scheduling
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Groups harvested when none are given on the command line
	Groups []GroupConfig `yaml:"groups" json:"groups"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig holds browser session configuration
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	CookiesFile       string        `yaml:"cookies_file" json:"cookies_file"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	FeedWait          time.Duration `yaml:"feed_wait" json:"feed_wait"`
}

// HarvestConfig holds the scroll and extraction loop settings
type HarvestConfig struct {
	MaxRecords        int           `yaml:"max_records" json:"max_records"`
	Workers           int           `yaml:"workers" json:"workers"`
	MaxScrollAttempts int           `yaml:"max_scroll_attempts" json:"max_scroll_attempts"`
	NoGrowthLimit     int           `yaml:"no_growth_limit" json:"no_growth_limit"`
	ScrollWait        time.Duration `yaml:"scroll_wait" json:"scroll_wait"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	MinScrollInterval time.Duration `yaml:"min_scroll_interval" json:"min_scroll_interval"`
	DrainPoll         time.Duration `yaml:"drain_poll" json:"drain_poll"`
	DrainTimeout      time.Duration `yaml:"drain_timeout" json:"drain_timeout"`
	Fields            []string      `yaml:"fields" json:"fields"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// ScheduleConfig holds watch mode settings
type ScheduleConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	GroupDelay   time.Duration `yaml:"group_delay" json:"group_delay"`
	RunsPerHour  int           `yaml:"runs_per_hour" json:"runs_per_hour"`
}

// GroupConfig describes one configured group
type GroupConfig struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			NavigationTimeout: 60 * time.Second,
			FeedWait:          30 * time.Second,
		},
		Harvest: HarvestConfig{
			MaxRecords:        10,
			Workers:           5,
			MaxScrollAttempts: 50,
			NoGrowthLimit:     3,
			ScrollWait:        15 * time.Second,
			SettleDelay:       1500 * time.Millisecond,
			MinScrollInterval: 3 * time.Second,
			DrainPoll:         100 * time.Millisecond,
			DrainTimeout:      30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			DSN:    "fbharvest.db",
		},
		Schedule: ScheduleConfig{
			PollInterval: 10 * time.Minute,
			GroupDelay:   30 * time.Second,
			RunsPerHour:  6,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("FBHARVEST_COOKIES_FILE"); v != "" {
		c.Browser.CookiesFile = v
	}
	if v := os.Getenv("FBHARVEST_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("FBHARVEST_HEADLESS"); v != "" {
		c.Browser.Headless = strings.ToLower(v) == "true"
	}

	if v := os.Getenv("FBHARVEST_MAX_RECORDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FBHARVEST_MAX_RECORDS: %w", err))
		} else if n > 0 {
			c.Harvest.MaxRecords = n
		}
	}
	if v := os.Getenv("FBHARVEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FBHARVEST_WORKERS: %w", err))
		} else if n > 0 {
			c.Harvest.Workers = n
		}
	}

	if v := os.Getenv("FBHARVEST_DB_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("FBHARVEST_DB_DSN"); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv("FBHARVEST_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FBHARVEST_POLL_INTERVAL: %w", err))
		} else {
			c.Schedule.PollInterval = d
		}
	}

	if v := os.Getenv("FBHARVEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FBHARVEST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"fbharvest.yaml",
		".fbharvest.yaml",
		".fbharvest.yml",
		filepath.Join(home, ".config", "fbharvest", "config.yaml"),
		filepath.Join(home, ".fbharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Harvest.MaxRecords <= 0 {
		errs = append(errs, errors.New("max records must be positive"))
	}
	if c.Harvest.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Harvest.Workers > 32 {
		errs = append(errs, errors.New("workers should not exceed 32"))
	}
	if c.Harvest.MaxScrollAttempts <= 0 {
		errs = append(errs, errors.New("max scroll attempts must be positive"))
	}
	if c.Harvest.NoGrowthLimit <= 0 {
		errs = append(errs, errors.New("no-growth limit must be positive"))
	}
	if c.Harvest.MinScrollInterval < 0 {
		errs = append(errs, errors.New("min scroll interval must not be negative"))
	}
	if c.Harvest.DrainTimeout <= 0 {
		errs = append(errs, errors.New("drain timeout must be positive"))
	}
	for _, f := range c.Harvest.Fields {
		if !validFields[f] {
			errs = append(errs, fmt.Errorf("unknown field %q", f))
		}
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, errors.New("retry max backoff must not be below initial backoff"))
	}

	switch c.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage dsn is required"))
	}

	if c.Schedule.RunsPerHour <= 0 {
		errs = append(errs, errors.New("runs per hour must be positive"))
	}

	for i, g := range c.Groups {
		if !strings.Contains(g.URL, "/groups/") {
			errs = append(errs, fmt.Errorf("group %d: url %q is not a group url", i, g.URL))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

var validFields = map[string]bool{
	"content_text":                true,
	"post_author_name":            true,
	"post_author_profile_pic_url": true,
	"post_image_url":              true,
	"posted_at":                   true,
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["max-records"].(int); ok && v > 0 {
		c.Harvest.MaxRecords = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Harvest.Workers = v
	}
	if v, ok := flags["max-scrolls"].(int); ok && v > 0 {
		c.Harvest.MaxScrollAttempts = v
	}
	if v, ok := flags["fields"].([]string); ok && len(v) > 0 {
		c.Harvest.Fields = v
	}
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.Browser.CookiesFile = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["db-driver"].(string); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fbharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
