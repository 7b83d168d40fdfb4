// ABOUTME: CLI command for copying every record from one local backend to another.
// ABOUTME: Dirty flags and tombstones travel with the records; cursors do not.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/config"
	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo     string
	migrateDryRun bool
	migrateSwitch bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy all data to another local backend",
	Long: `Copy every record from the current backend to another one.

BACKENDS:

  sqlite   ~/.local/share/periodize/periodize.db
  kv       badger database in ~/.local/share/periodize/kv
  charm    Charm KV, replicated through Charm Cloud

Unsynced changes and deletions are copied as they are, so nothing waiting
to sync is lost. The target pulls everything again on its first sync.

USAGE:

  periodize migrate --to kv --dry-run   # Preview what would be copied
  periodize migrate --to kv --switch    # Copy, then make kv the backend`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch migrateTo {
		case "sqlite", "kv", "charm":
		default:
			return fmt.Errorf("unknown backend: %q", migrateTo)
		}
		if migrateTo == cfg.GetBackend() {
			return fmt.Errorf("already using the %s backend", migrateTo)
		}

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			fmt.Println()
			for _, kind := range models.Kinds {
				recs, err := store.AllRecords(kind)
				if err != nil {
					return err
				}
				fmt.Printf("  %s %d\n", padRight(kind.Table()+":", 16), len(recs))
			}
			fmt.Printf("\nWould copy to the %s backend.\n", migrateTo)
			return nil
		}

		if migrateTo == "kv" {
			dir := filepath.Join(cfg.GetDataDir(), "kv")
			nonEmpty, err := storage.IsDirNonEmpty(dir)
			if err != nil {
				return err
			}
			if nonEmpty {
				color.Yellow("Note: %s already has data; matching ids will be overwritten.", dir)
			}
		}

		target := *cfg
		target.Backend = migrateTo
		dst, err := target.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open %s backend: %w", migrateTo, err)
		}
		defer dst.Close()

		summary, err := storage.MigrateData(store, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		color.Green("✓ Migrated %d record(s) to %s", summary.Total(), migrateTo)
		fmt.Printf("  periodizations %d, sessions %d, exercises %d, sets %d\n",
			summary.Periodizations, summary.Sessions, summary.Exercises, summary.Sets)

		if migrateSwitch {
			return updateConfig(func(c *config.Config) { c.Backend = migrateTo }, func() {
				color.Green("✓ Backend switched to %s", migrateTo)
			})
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target backend: sqlite, kv or charm")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview without copying")
	migrateCmd.Flags().BoolVar(&migrateSwitch, "switch", false, "make the target the configured backend")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
