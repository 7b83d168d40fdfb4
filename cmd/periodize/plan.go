// ABOUTME: CLI commands for periodizations: add, list, show, update and delete.
// ABOUTME: 'plan show' prints the whole session/exercise/set tree.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/models"
	"github.com/spf13/cobra"
)

var (
	planStart string
	planEnd   string
	planDesc  string
	planName  string
)

var planCmd = &cobra.Command{
	Use:     "plan",
	Aliases: []string{"p", "periodization"},
	Short:   "Manage periodizations (training blocks)",
	Long: `Manage periodizations, the training blocks that contain sessions.

EXAMPLES:

  periodize plan add "Strength 1" --start 2025-01-06 --end 2025-02-02
  periodize plan list
  periodize plan show 3f2a
  periodize plan update 3f2a --end "next sunday"
  periodize plan rm 3f2a          # also removes its sessions, exercises and sets`,
}

var planAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a periodization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		start, err := optionalTime(planStart)
		if err != nil {
			return err
		}
		if start == nil {
			now := timeNow()
			start = &now
		}
		p := models.NewPeriodization(userID, args[0], *start)
		end, err := optionalTime(planEnd)
		if err != nil {
			return err
		}
		if end != nil {
			p.WithEndDate(*end)
		}
		if planDesc != "" {
			p.WithDescription(planDesc)
		}
		if err := store.CreatePeriodization(p); err != nil {
			return fmt.Errorf("failed to create periodization: %w", err)
		}

		color.Green("✓ Added periodization %s", p.Name)
		fmt.Printf("  %s starts %s\n", faint.Sprint(short(p.ID)), fmtDate(p.StartDate))
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List periodizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		plans, err := store.ListPeriodizations(userID)
		if err != nil {
			return fmt.Errorf("failed to list periodizations: %w", err)
		}
		if len(plans) == 0 {
			fmt.Println("No periodizations found.")
			return nil
		}
		for _, p := range plans {
			end := "open"
			if p.EndDate != nil {
				end = p.EndDate.Local().Format("2006-01-02")
			}
			fmt.Printf("%s%s %s → %s  %s\n",
				dirtyMark(&p.Meta),
				faint.Sprint(short(p.ID)),
				p.StartDate.Local().Format("2006-01-02"),
				padRight(end, 10),
				p.Name)
		}
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a periodization with all sessions, exercises and sets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindPeriodization, args[0])
		if err != nil {
			return err
		}
		p, err := store.GetPeriodization(id)
		if err != nil {
			return err
		}
		color.New(color.Bold).Printf("%s", p.Name)
		fmt.Printf("  %s\n", faint.Sprint(p.ID))
		if p.Description != nil {
			fmt.Printf("  %s\n", *p.Description)
		}

		sessions, err := store.ListSessions(p.ID)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Printf("\n  %s %s %s [%s]\n", faint.Sprint(short(s.ID)), fmtDate(s.ScheduledAt), s.Name, s.Status)
			exercises, err := store.ListExercises(s.ID)
			if err != nil {
				return err
			}
			for _, e := range exercises {
				group := ""
				if e.ConjugatedGroup != nil {
					group = faint.Sprintf(" (%s)", *e.ConjugatedGroup)
				}
				fmt.Printf("    %s %d. %s%s\n", faint.Sprint(short(e.ID)), e.OrderIndex+1, e.Name, group)
				sets, err := store.ListSets(e.ID)
				if err != nil {
					return err
				}
				for _, set := range sets {
					fmt.Printf("      %s %s\n", faint.Sprint(short(set.ID)), describeSet(set))
				}
			}
		}
		return nil
	},
}

var planUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a periodization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindPeriodization, args[0])
		if err != nil {
			return err
		}
		start, err := optionalTime(planStart)
		if err != nil {
			return err
		}
		end, err := optionalTime(planEnd)
		if err != nil {
			return err
		}
		err = store.UpdatePeriodization(id, func(p *models.Periodization) {
			if planName != "" {
				p.Name = planName
			}
			if start != nil {
				p.StartDate = *start
			}
			if end != nil {
				p.EndDate = end
			}
			if cmd.Flags().Changed("desc") {
				p.Description = optionalString(planDesc)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to update periodization: %w", err)
		}
		color.Green("✓ Updated periodization %s", short(id))
		return nil
	},
}

var planDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "del"},
	Short:   "Delete a periodization and everything in it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteRecord(models.KindPeriodization, args[0])
	},
}

func init() {
	planAddCmd.Flags().StringVar(&planStart, "start", "", "start date (default: now)")
	planAddCmd.Flags().StringVar(&planEnd, "end", "", "end date")
	planAddCmd.Flags().StringVar(&planDesc, "desc", "", "description")

	planUpdateCmd.Flags().StringVar(&planName, "name", "", "new name")
	planUpdateCmd.Flags().StringVar(&planStart, "start", "", "start date")
	planUpdateCmd.Flags().StringVar(&planEnd, "end", "", "end date")
	planUpdateCmd.Flags().StringVar(&planDesc, "desc", "", "description (empty clears)")

	planCmd.AddCommand(planAddCmd, planListCmd, planShowCmd, planUpdateCmd, planDeleteCmd)
	rootCmd.AddCommand(planCmd)
}
