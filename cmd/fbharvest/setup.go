package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/playwright-community/playwright-go"

	"fbharvest/pkg/browser"
	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
	"fbharvest/pkg/scraper"
	"fbharvest/pkg/storage"
	"fbharvest/pkg/ui"
)

// loadConfig merges the config file, environment and flags, then starts logging
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}

	cfg, err := config.Load(path, flags)
	if err != nil {
		return nil, err
	}
	logger.Version = version
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// resolveGroups turns url arguments into groups, falling back to the config
func resolveGroups(cfg *config.Config, args []string) ([]models.Group, error) {
	var groups []models.Group
	for _, arg := range args {
		url := strings.TrimSpace(arg)
		if !strings.Contains(url, "/groups/") {
			return nil, errs.New(errs.ErrorTypeConfig, "resolve groups", fmt.Sprintf("%q is not a group url", url))
		}
		groups = append(groups, models.NewGroup("", url))
	}
	if len(groups) > 0 {
		return groups, nil
	}

	for _, g := range cfg.Groups {
		groups = append(groups, models.NewGroup(g.Name, g.URL))
	}
	if len(groups) == 0 {
		return nil, errs.New(errs.ErrorTypeConfig, "resolve groups", "no group urls given and none configured")
	}
	return groups, nil
}

// sessionFactory launches a fresh browser with the configured cookies
func sessionFactory(cfg *config.Config, log logger.Logger) (scraper.SessionFactory, error) {
	var cookies []playwright.OptionalCookie
	if cfg.Browser.CookiesFile != "" {
		var err error
		cookies, err = browser.LoadCookies(cfg.Browser.CookiesFile)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("No cookie file configured; the feed will likely redirect to login")
	}

	return func(ctx context.Context) (browser.Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeCancelled, "launch browser", err)
		}
		session, err := browser.Launch(browser.LaunchOptions{
			Headless:          cfg.Browser.Headless,
			UserAgent:         cfg.Browser.UserAgent,
			Cookies:           cookies,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			Logger:            log,
		})
		if err != nil {
			return nil, err
		}
		return session, nil
	}, nil
}

// newScraper opens storage and wires a scraper over it
func newScraper(ctx context.Context, cfg *config.Config, exportPath string) (*scraper.Scraper, *storage.Store, error) {
	log := logger.GetLogger()

	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, err
	}

	sessions, err := sessionFactory(cfg, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return scraper.New(cfg, store, sessions, log).WithExport(exportPath), store, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printOutcomes(outcomes []*scraper.Outcome, max int) {
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		name := o.Group.Name
		if name == "" {
			name = o.Group.Key
		}
		if o.Err != nil {
			ui.PrintError(name, o.Err)
			if errs.Is(o.Err, errs.ErrorTypeSessionInvalid) {
				ui.PrintWarning("The session was redirected to login; export fresh cookies and pass them with --cookies")
			}
			continue
		}
		ui.PrintRunSummary(ui.RunSummary{
			Group:    name,
			Stop:     string(o.Result.Stop),
			Accepted: o.Result.Len(),
			Stored:   o.Stored,
			Max:      max,
			Scrolls:  o.Result.Stats.Scrolls,
			Failed:   o.Result.Stats.Failed,
			Duration: o.Result.Stats.Duration,
		})
		if o.Export != "" {
			ui.PrintInfo("  exported", o.Export)
		}
	}
}
