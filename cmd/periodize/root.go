// ABOUTME: Root Cobra command for the periodize CLI.
// ABOUTME: Loads config and opens the local store via PersistentPre/PostRunE.
package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/periodize/internal/config"
	"github.com/harperreed/periodize/internal/logging"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	store  *storage.Store
	logger *log.Logger

	flagOffline  bool
	flagDataDir  string
	flagBackend  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "periodize",
	Short: "Offline-first strength training planner",
	Long: `Periodize plans and logs strength training, offline first.

WHAT IT TRACKS:

  Periodizations  training blocks with a start and optional end date
  Sessions        scheduled training days inside a block
  Exercises       ordered movements inside a session (supersets supported)
  Sets            reps, load, RPE/RIR, drop sets, rest-pause and clusters

QUICK START:

  $ periodize login alice                          # Choose the user you act as
  $ periodize plan add "Hypertrophy 1" --start 2025-01-06
  $ periodize session add 3f2a "Lower A" --at "2025-01-06 07:00"
  $ periodize exercise add 9c1d "Back Squat" --muscle legs
  $ periodize set add 77be 5 120 --rpe 8
  $ periodize plan show 3f2a                       # Whole tree with volume

SYNC:

  Every write lands in the local store first and is marked dirty. When a
  remote is configured the sync engine pushes dirty records, pulls remote
  changes and resolves conflicts by last write wins.

  $ periodize sync now       # One push + pull pass
  $ periodize sync status    # Pending changes and last sync time
  $ periodize sync daemon    # Sync every N minutes and on reconnect

MCP INTEGRATION:

  Run 'periodize mcp' to start the Model Context Protocol server:

  {
    "mcpServers": {
      "periodize": { "command": "periodize", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  SQLite at ~/.local/share/periodize/periodize.db by default. Set
  "backend" to "kv" (badger) or "charm" in ~/.config/periodize/config.json
  to use a key-value store instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnv()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if flagDataDir != "" {
			cfg.DataDir = flagDataDir
		}
		if flagBackend != "" {
			cfg.Backend = flagBackend
		}
		level := cfg.LogLevel
		if flagLogLevel != "" {
			level = flagLogLevel
		}
		logger = logging.Stderr(logging.ParseLevel(level))

		if !needsStore(cmd) {
			return nil
		}
		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.GetBackend(), err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return nil
		}
		err := store.Close()
		store = nil
		return err
	},
}

// needsStore reports whether cmd works on the local store.
func needsStore(cmd *cobra.Command) bool {
	if cmd.Annotations["store"] == "none" {
		return false
	}
	switch cmd.Name() {
	case "help", "version", "completion":
		return false
	}
	return true
}

// Execute runs the root command. The store is closed even when the command
// fails, since cobra skips PersistentPostRunE on error.
func Execute() error {
	err := rootCmd.Execute()
	if store != nil {
		_ = store.Close()
		store = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "treat the remote as unreachable")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "local backend: sqlite, kv or charm (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}
