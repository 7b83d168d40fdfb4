// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio MCP server; sync_now is offered when a remote is configured.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/periodize/internal/mcp"
	"github.com/harperreed/periodize/internal/sync"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout and acts as the signed-in user.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "periodize": {
        "command": "periodize",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  create_periodization  list_periodizations
  create_session        list_sessions        complete_session
  add_exercise          list_exercises
  add_set               list_sets
  delete_record         get_progression
  sync_now              (only with a remote configured)

AVAILABLE RESOURCES:

  periodize://dashboard   Headline training numbers
  periodize://records     Personal records per exercise
  periodize://pending     Changes waiting to sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}

		var opts []mcp.Option
		if cfg.GetRemote() != nil {
			rt, err := openSyncRuntime(sync.StaticIdentity(userID), logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			opts = append(opts, mcp.WithSyncer(&reachableSyncer{rt: rt}))
		}

		server, err := mcp.NewServer(store, userID, opts...)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		return server.Serve(ctx)
	},
}

// reachableSyncer pings the remote before each pass so the engine sees
// current reachability.
type reachableSyncer struct {
	rt *syncRuntime
}

func (s *reachableSyncer) Sync(ctx context.Context) (*sync.Report, error) {
	s.rt.checkReachable(ctx)
	return s.rt.engine.Sync(ctx)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
