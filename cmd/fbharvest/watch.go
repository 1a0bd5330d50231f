package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fbharvest/pkg/logger"
	"fbharvest/pkg/scraper"
	"fbharvest/pkg/ui"
)

var (
	// Watch command flags
	pollInterval time.Duration
	runsPerHour  int
)

var watchCmd = &cobra.Command{
	Use:   "watch [group-url...]",
	Short: "Harvest groups repeatedly on an interval",
	Long: `Harvest the given or configured groups, wait, and harvest again until
interrupted.

Cycles are capped by schedule.runs_per_hour within any rolling hour. A cycle
that hits an invalid session ends watching, since later cycles would fail the
same way.`,
	Example: `  # Poll the configured groups every 15 minutes
  fbharvest watch --cookies cookies.json --interval 15m`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addHarvestFlags(watchCmd)
	watchCmd.Flags().DurationVar(&pollInterval, "interval", 0, "pause between cycles (default from config)")
	watchCmd.Flags().IntVar(&runsPerHour, "runs-per-hour", 0, "maximum cycles started in any hour")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(harvestFlags(cmd))
	if err != nil {
		return err
	}
	if pollInterval > 0 {
		cfg.Schedule.PollInterval = pollInterval
	}
	if runsPerHour > 0 {
		cfg.Schedule.RunsPerHour = runsPerHour
	}

	groups, err := resolveGroups(cfg, args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, store, err := newScraper(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer store.Close()

	logger.GetLogger().InfoWithFields("Watching groups", map[string]interface{}{
		"groups":   len(groups),
		"interval": cfg.Schedule.PollInterval.String(),
	})
	ui.PrintInfo("Watching", fmt.Sprintf("%d groups every %s", len(groups), cfg.Schedule.PollInterval))

	cycle := 0
	err = s.Watch(ctx, groups, func(outcomes []*scraper.Outcome) {
		cycle++
		ui.PrintHighlight(fmt.Sprintf("Cycle %d at %s", cycle, time.Now().Format("15:04:05")))
		printOutcomes(outcomes, cfg.Harvest.MaxRecords)
	})
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stopped after %d cycles", cycle))
	return nil
}
