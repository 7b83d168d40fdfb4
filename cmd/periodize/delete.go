// ABOUTME: CLI command for deleting any record by kind and id prefix.
// ABOUTME: Deletes are soft: tombstones cascade to children and sync like edits.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/models"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <kind> <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a periodization, session, exercise or set",
	Long: `Delete a record by kind and ID or ID prefix.

KINDS:

  periodization (plan), session, exercise, set

Deleting a record also deletes everything it contains. Deleted records are
kept as tombstones until the deletion has reached the remote, so other
devices learn about it on their next sync. 'periodize sync purge' removes
acknowledged tombstones for good.

EXAMPLES:

  periodize delete session 9c1d
  periodize rm plan 3f2a`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if name == "plan" {
			name = string(models.KindPeriodization)
		}
		kind, err := models.ParseKind(name)
		if err != nil {
			return err
		}
		return deleteRecord(kind, args[1])
	},
}

// deleteRecord resolves idOrPrefix and tombstones the record and its subtree.
func deleteRecord(kind models.Kind, idOrPrefix string) error {
	id, err := resolve(kind, idOrPrefix)
	if err != nil {
		return err
	}
	switch kind {
	case models.KindPeriodization:
		err = store.DeletePeriodization(id)
	case models.KindSession:
		err = store.DeleteSession(id)
	case models.KindExercise:
		err = store.DeleteExercise(id)
	case models.KindSet:
		err = store.DeleteSet(id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	color.Yellow("✗ Deleted %s", kind)
	fmt.Printf("  %s\n", faint.Sprint(short(id)))
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
