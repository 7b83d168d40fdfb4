// ABOUTME: CLI commands for training sessions inside a periodization.
// ABOUTME: Sessions move planned → in_progress → completed.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/models"
	"github.com/spf13/cobra"
)

var (
	sessionAt    string
	sessionNotes string
	sessionName  string
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sess"},
	Short:   "Manage training sessions",
	Long: `Manage the training sessions of a periodization.

EXAMPLES:

  periodize session add 3f2a "Lower A" --at "2025-01-06 07:00"
  periodize session add 3f2a "Upper A" --at "tomorrow 7am"
  periodize session list 3f2a
  periodize session start 9c1d
  periodize session done 9c1d
  periodize session rm 9c1d`,
}

var sessionAddCmd = &cobra.Command{
	Use:   "add <plan-id> <name>",
	Short: "Schedule a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		planID, err := resolve(models.KindPeriodization, args[0])
		if err != nil {
			return err
		}
		at, err := optionalTime(sessionAt)
		if err != nil {
			return err
		}
		if at == nil {
			now := timeNow()
			at = &now
		}
		s := models.NewSession(userID, planID, args[1], *at)
		s.Notes = optionalString(sessionNotes)
		if err := store.CreateSession(s); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		color.Green("✓ Added session %s", s.Name)
		fmt.Printf("  %s %s\n", faint.Sprint(short(s.ID)), fmtDate(s.ScheduledAt))
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list <plan-id>",
	Aliases: []string{"ls"},
	Short:   "List the sessions of a periodization",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := resolve(models.KindPeriodization, args[0])
		if err != nil {
			return err
		}
		sessions, err := store.ListSessions(planID)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		for _, s := range sessions {
			notes := ""
			if s.Notes != nil {
				notes = faint.Sprintf(" (%s)", truncate(*s.Notes, 30))
			}
			fmt.Printf("%s%s %s %s %s%s\n",
				dirtyMark(&s.Meta),
				faint.Sprint(short(s.ID)),
				fmtDate(s.ScheduledAt),
				padRight(string(s.Status), 11),
				s.Name,
				notes)
		}
		return nil
	},
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Mark a session in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindSession, args[0])
		if err != nil {
			return err
		}
		err = store.UpdateSession(id, func(s *models.Session) {
			s.Status = models.SessionInProgress
		})
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		color.Green("✓ Started session %s", short(id))
		return nil
	},
}

var sessionDoneCmd = &cobra.Command{
	Use:     "done <id>",
	Aliases: []string{"complete"},
	Short:   "Mark a session completed",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindSession, args[0])
		if err != nil {
			return err
		}
		at, err := optionalTime(sessionAt)
		if err != nil {
			return err
		}
		if at == nil {
			now := timeNow()
			at = &now
		}
		if err := store.UpdateSession(id, func(s *models.Session) { s.Complete(*at) }); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}
		color.Green("✓ Completed session %s", short(id))
		return nil
	},
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename, reschedule or annotate a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindSession, args[0])
		if err != nil {
			return err
		}
		at, err := optionalTime(sessionAt)
		if err != nil {
			return err
		}
		err = store.UpdateSession(id, func(s *models.Session) {
			if sessionName != "" {
				s.Name = sessionName
			}
			if at != nil {
				s.ScheduledAt = *at
			}
			if cmd.Flags().Changed("notes") {
				s.Notes = optionalString(sessionNotes)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		color.Green("✓ Updated session %s", short(id))
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "del"},
	Short:   "Delete a session and its exercises and sets",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteRecord(models.KindSession, args[0])
	},
}

func init() {
	sessionAddCmd.Flags().StringVar(&sessionAt, "at", "", "scheduled time (default: now)")
	sessionAddCmd.Flags().StringVar(&sessionNotes, "notes", "", "notes")
	sessionDoneCmd.Flags().StringVar(&sessionAt, "at", "", "completion time (default: now)")
	sessionUpdateCmd.Flags().StringVar(&sessionName, "name", "", "new name")
	sessionUpdateCmd.Flags().StringVar(&sessionAt, "at", "", "new scheduled time")
	sessionUpdateCmd.Flags().StringVar(&sessionNotes, "notes", "", "notes (empty clears)")

	sessionCmd.AddCommand(sessionAddCmd, sessionListCmd, sessionStartCmd, sessionDoneCmd, sessionUpdateCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
