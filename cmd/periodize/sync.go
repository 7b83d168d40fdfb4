// ABOUTME: CLI commands for syncing with the remote: now, status, interval, purge, daemon.
// ABOUTME: Wires the local store, remote adapter, reachability monitor and sync engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/config"
	"github.com/harperreed/periodize/internal/logging"
	"github.com/harperreed/periodize/internal/netstate"
	"github.com/harperreed/periodize/internal/remote"
	"github.com/harperreed/periodize/internal/sync"
	"github.com/spf13/cobra"
)

var (
	syncFull       bool
	purgeOlderThan time.Duration
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync with the remote backend",
	Long: `Sync local changes with the shared remote backend.

Every local write is stored immediately and marked dirty. A sync pass pushes
dirty records parents first, then pulls remote changes newer than the last
pass. When both sides changed a record, the newer write wins; unsynced local
edits are never overwritten by an older remote copy.

CONFIGURATION (~/.config/periodize/config.json):

  {
    "user_id": "alice",
    "remote": { "kind": "rest", "url": "https://db.example.com/rest/v1", "api_key": "..." },
    "auto_sync": { "interval_minutes": 15 }
  }

  PERIODIZE_REMOTE_URL, PERIODIZE_API_KEY and PERIODIZE_USER_ID override the
  file and may be kept in a .env file. Use "kind": "sql" with a file path as
  url for a self-hosted SQLite remote.

COMMANDS:

  now        Run one sync pass
  status     Show pending changes and the last sync time
  interval   Show or set the auto-sync interval (1, 5, 10, 15, 30 or 60 minutes)
  daemon     Sync on the interval and whenever the remote becomes reachable
  purge      Remove deletions the remote has acknowledged`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run one sync pass",
	Long: `Push local changes and pull remote changes once.

--full re-pulls every record from the remote instead of only changes since
the last pass.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		rt, err := openSyncRuntime(sync.StaticIdentity(userID), logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		rt.checkReachable(ctx)
		if !rt.monitor.IsOnline() {
			color.Yellow("⚠ Remote unreachable; changes stay queued locally.")
			return nil
		}

		if syncFull {
			if err := rt.engine.ResetCursors(userID); err != nil {
				return err
			}
		}
		rep, err := rt.engine.Sync(ctx)
		printReport(rep, err)
		if err != nil {
			return err
		}
		return rep.Err()
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := cfg.GetUserID()
		engine := sync.NewEngine(store, nil, sync.StaticIdentity(userID), netstate.Forced())
		st, err := engine.Status()
		if err != nil {
			return err
		}

		if userID == "" {
			color.Yellow("Not signed in")
		} else {
			fmt.Println("User:    ", userID)
		}
		fmt.Println("Backend: ", cfg.GetBackend())
		if r := cfg.GetRemote(); r != nil {
			fmt.Printf("Remote:   %s (%s)\n", r.URL, r.Kind)
		} else {
			fmt.Println("Remote:   not configured")
		}
		fmt.Printf("Interval: every %d min\n", cfg.GetInterval())
		if st.LastSyncedAt != nil {
			fmt.Println("Last sync:", fmtDate(*st.LastSyncedAt))
		} else {
			fmt.Println("Last sync: never")
		}
		fmt.Println()

		if st.Pending == 0 {
			color.Green("✓ Everything synced")
		} else {
			color.Yellow("%d change(s) waiting to sync", st.Pending)
		}
		return nil
	},
}

var syncIntervalCmd = &cobra.Command{
	Use:         "interval [minutes]",
	Short:       "Show or set the auto-sync interval",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Printf("%d\n", cfg.GetInterval())
			return nil
		}
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid interval: %s", args[0])
		}
		if !sync.ValidInterval(minutes) {
			return fmt.Errorf("invalid interval %d: must be one of %v", minutes, sync.ValidIntervals)
		}
		return updateConfig(func(c *config.Config) { _ = c.SetInterval(minutes) }, func() {
			color.Green("✓ Auto-sync every %d min", minutes)
		})
	},
}

var syncPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove acknowledged deletions",
	Long: `Physically remove tombstones the remote has acknowledged.

Only deletions that are synced and older than --older-than are removed;
records with unsynced children are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := store.PurgeTombstones(timeNow().Add(-purgeOlderThan))
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		color.Green("✓ Purged %d tombstone(s)", n)
		return nil
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync continuously in the foreground",
	Long: `Run the sync scheduler until interrupted.

A pass runs every auto_sync.interval_minutes and right after the remote
becomes reachable again. Edits to config.json (interval, user) apply without
a restart. Logs go to periodize.log in the data directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

// syncRuntime holds everything a sync pass needs besides the store.
type syncRuntime struct {
	engine  *sync.Engine
	monitor *netstate.Monitor
	remote  remote.Remote
	closer  io.Closer
}

func openSyncRuntime(identity sync.Identity, l *log.Logger) (*syncRuntime, error) {
	rem, closer, err := cfg.OpenRemote()
	if err != nil {
		return nil, err
	}
	mon := netstate.NewMonitor(false)
	if flagOffline {
		mon = netstate.Forced()
	}
	return &syncRuntime{
		engine:  sync.NewEngine(store, rem, identity, mon, sync.WithLogger(l)),
		monitor: mon,
		remote:  rem,
		closer:  closer,
	}, nil
}

// checkReachable pings the remote once unless forced offline.
func (rt *syncRuntime) checkReachable(ctx context.Context) {
	if flagOffline {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, netstate.ProbeTimeout)
	defer cancel()
	err := rt.remote.Ping(pctx)
	if err != nil {
		logger.Debug("ping failed", "err", err)
	}
	rt.monitor.SetOnline(err == nil)
}

func (rt *syncRuntime) Close() error {
	return rt.closer.Close()
}

// configIdentity is the signed-in user as last read from config.
type configIdentity struct {
	id atomic.Value
}

func newConfigIdentity(id string) *configIdentity {
	c := &configIdentity{}
	c.id.Store(id)
	return c
}

func (c *configIdentity) CurrentUserID() (string, bool) {
	id := c.id.Load().(string)
	return id, id != ""
}

// Set stores id and reports whether it changed.
func (c *configIdentity) Set(id string) bool {
	return c.id.Swap(id).(string) != id
}

func runDaemon(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := logging.ParseLevel(cfg.LogLevel)
	if flagLogLevel != "" {
		level = logging.ParseLevel(flagLogLevel)
	}
	logCfg := logging.DefaultFileConfig(cfg.GetDataDir())
	fileLog, logCloser, err := logging.NewFile(logCfg, level)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logCloser.Close()

	ident := newConfigIdentity(cfg.GetUserID())
	rt, err := openSyncRuntime(ident, fileLog)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !flagOffline {
		go netstate.Probe(ctx, rt.monitor, rt.remote, netstate.DefaultProbeInterval, fileLog)
	}

	sched, err := sync.NewScheduler(rt.engine, ident, rt.monitor,
		sync.WithInterval(cfg.GetInterval()),
		sync.WithSchedulerLogger(fileLog),
		sync.WithReportHook(func(rep *sync.Report, err error) {
			if err != nil && !errors.Is(err, sync.ErrAborted) {
				fileLog.Error("sync failed", "err", err)
			}
		}),
	)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	err = config.Watch(ctx, config.GetConfigPath(), func(c *config.Config) {
		if iv := c.GetInterval(); iv != sched.Interval() {
			if err := sched.SetInterval(iv); err != nil {
				fileLog.Warn("ignoring interval", "minutes", iv, "err", err)
			} else {
				fileLog.Info("interval changed", "minutes", iv)
			}
		}
		if ident.Set(c.GetUserID()) {
			fileLog.Info("user changed", "user", c.GetUserID())
			sched.AuthChanged()
		}
	}, func(err error) {
		fileLog.Warn("config reload failed", "err", err)
	})
	if err != nil {
		fileLog.Warn("config watch disabled", "err", err)
	}

	color.Green("✓ Sync daemon running (every %d min)", sched.Interval())
	fmt.Printf("  logging to %s\n", faint.Sprint(logCfg.Path))
	<-ctx.Done()
	fmt.Println("Stopping.")
	return nil
}

func printReport(rep *sync.Report, err error) {
	if rep == nil {
		return
	}
	if !rep.Ran() {
		color.Yellow("Sync skipped: %s", rep.Skipped)
		return
	}
	if err != nil {
		color.Red("✗ Sync stopped: %v", err)
	} else if len(rep.Failures) > 0 {
		color.Yellow("⚠ Sync finished with %d failure(s)", len(rep.Failures))
	} else {
		color.Green("✓ Sync complete")
	}
	fmt.Printf("  pushed %d, deleted %d, pulled %d (%d new, %d updated, %d kept local) in %s\n",
		rep.Pushed, rep.Deleted, rep.Fetched, rep.Inserted, rep.Updated, rep.LocalWins,
		rep.Duration().Round(time.Millisecond))
	for _, f := range rep.Failures {
		fmt.Printf("  %s %s\n", color.RedString("✗"), f.Error())
	}
}

func init() {
	syncNowCmd.Flags().BoolVar(&syncFull, "full", false, "re-pull every record")
	syncPurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "only purge tombstones synced before this long ago")

	syncCmd.AddCommand(syncNowCmd, syncStatusCmd, syncIntervalCmd, syncPurgeCmd, syncDaemonCmd)
	rootCmd.AddCommand(syncCmd)
}
