package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fbharvest/pkg/checkpoint"
	"fbharvest/pkg/models"
	"fbharvest/pkg/storage"
	"fbharvest/pkg/ui"
)

var recentLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored groups, their last runs and recent posts",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset [group-url...]",
	Short: "Clear the run history of groups",
	Long: `Clear the recorded run history of groups, or of every configured group
when no url is given. The previous history is kept as a .backup file.

Stored posts are not touched, so the next harvest still stops at the most
recently stored post.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	statusCmd.Flags().IntVar(&recentLimit, "recent", 3, "recent posts shown per group")
	statusCmd.Flags().StringVar(&dbDriver, "db-driver", "", "storage driver (sqlite3, postgres)")
	statusCmd.Flags().StringVar(&dbDSN, "db", "", "storage dsn (sqlite file path or postgres url)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if dbDriver != "" {
		flags["db-driver"] = dbDriver
	}
	if dbDSN != "" {
		flags["db"] = dbDSN
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	checkpoints, err := checkpoint.LoadAll()
	if err != nil {
		ui.PrintWarning("Could not read checkpoints", err)
	}
	byKey := make(map[string]*checkpoint.Checkpoint, len(checkpoints))
	for _, cp := range checkpoints {
		byKey[cp.GroupKey] = cp
	}

	groups, err := store.Groups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		ui.PrintInfo("Groups", "none harvested yet")
		return nil
	}

	for _, g := range groups {
		count, err := store.CountPosts(ctx, g)
		if err != nil {
			return err
		}

		lines := []string{
			ui.Cyan(g.Key) + " " + ui.Dim(g.URL),
			fmt.Sprintf("  stored  %d posts", count),
		}
		if cp := byKey[g.Key]; cp != nil {
			lines = append(lines, fmt.Sprintf("  runs    %d (%d failed), last %s",
				cp.TotalRuns, cp.FailedRuns, ui.FormatAge(cp.LastRunAt)))
			if cp.LastError != "" {
				lines = append(lines, "  "+ui.Red("last error: "+cp.LastError))
			} else if cp.LastStop != "" {
				lines = append(lines, fmt.Sprintf("  last    %s, %d new", ui.Yellow(cp.LastStop), cp.LastStored))
			}
		}
		fmt.Fprintln(ui.Output, ui.Panel(lines...))

		recent, err := store.RecentPosts(ctx, g, recentLimit)
		if err != nil {
			return err
		}
		for _, p := range recent {
			ui.PrintPostLine(p.ID, p.HarvestedAt, p.Text)
		}
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	groups, err := resolveGroups(cfg, args)
	if err != nil {
		return err
	}
	return resetGroups(groups)
}

func resetGroups(groups []models.Group) error {
	for _, g := range groups {
		mgr, err := checkpoint.NewManager(g.Key)
		if err != nil {
			return err
		}
		reset, err := mgr.Reset()
		if err != nil {
			ui.PrintError(g.Key, err)
			return err
		}
		if reset {
			ui.PrintSuccess("Run history cleared: " + g.Key)
		} else {
			ui.PrintInfo(g.Key, "no run history")
		}
	}
	return nil
}
