// ABOUTME: CLI commands selecting the user the CLI acts as.
// ABOUTME: The user id is persisted in config.json; a running daemon picks it up.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/config"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/spf13/cobra"
)

var loginCharm bool

var loginCmd = &cobra.Command{
	Use:   "login [user-id]",
	Short: "Sign in as a user",
	Long: `Sign in as a user. Records you create belong to this user and sync
only while someone is signed in.

With --charm the Charm account id is used as the user id.

EXAMPLES:

  periodize login alice
  periodize login --charm`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var userID string
		switch {
		case loginCharm:
			id, err := storage.CharmUserID()
			if err != nil {
				return fmt.Errorf("failed to read charm id: %w", err)
			}
			userID = id
		case len(args) == 1:
			userID = args[0]
		default:
			return fmt.Errorf("give a user id or --charm")
		}

		return updateConfig(func(c *config.Config) { c.UserID = userID }, func() {
			color.Green("✓ Signed in as %s", userID)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:         "logout",
	Short:       "Sign out; local data is kept",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) { c.UserID = "" }, func() {
			color.Yellow("Signed out. Local data is kept; sync is paused until you sign in.")
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:         "whoami",
	Short:       "Show the signed-in user",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if id := cfg.GetUserID(); id != "" {
			fmt.Println(id)
			return nil
		}
		fmt.Println("Not signed in.")
		return nil
	},
}

// updateConfig edits the config file as stored on disk, without the
// per-invocation flag overrides, and saves it.
func updateConfig(edit func(*config.Config), done func()) error {
	onDisk, err := config.Load()
	if err != nil {
		return err
	}
	edit(onDisk)
	if err := onDisk.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	edit(cfg)
	if done != nil {
		done()
	}
	return nil
}

func init() {
	loginCmd.Flags().BoolVar(&loginCharm, "charm", false, "use the Charm account id")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
