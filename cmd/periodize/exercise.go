// ABOUTME: CLI commands for exercises, the ordered movements of a session.
// ABOUTME: Supersets are expressed with --group and --group-order.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/models"
	"github.com/spf13/cobra"
)

var (
	exMuscle     string
	exEquipment  string
	exNotes      string
	exOrder      int
	exGroup      string
	exGroupOrder int
	exName       string
)

var exerciseCmd = &cobra.Command{
	Use:     "exercise",
	Aliases: []string{"ex"},
	Short:   "Manage the exercises of a session",
	Long: `Manage the exercises of a session.

Exercises are appended in order unless --order is given. Exercises sharing
a --group label are performed as a superset, sequenced by --group-order.

EXAMPLES:

  periodize exercise add 9c1d "Back Squat" --muscle legs --equipment barbell
  periodize exercise add 9c1d "Pull-up" --group A --group-order 1
  periodize exercise add 9c1d "Dip" --group A --group-order 2
  periodize exercise list 9c1d
  periodize exercise rm 77be`,
}

var exerciseAddCmd = &cobra.Command{
	Use:   "add <session-id> <name>",
	Short: "Add an exercise to a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		sessionID, err := resolve(models.KindSession, args[0])
		if err != nil {
			return err
		}
		order := exOrder
		if !cmd.Flags().Changed("order") {
			existing, err := store.ListExercises(sessionID)
			if err != nil {
				return err
			}
			order = len(existing)
		}
		e := models.NewExercise(userID, sessionID, args[1], order)
		if exMuscle != "" {
			e.WithMuscleGroup(exMuscle)
		}
		if exEquipment != "" {
			e.WithEquipment(exEquipment)
		}
		e.Notes = optionalString(exNotes)
		if exGroup != "" {
			e.ConjugatedGroup = &exGroup
			groupOrder := exGroupOrder
			e.ConjugatedOrder = &groupOrder
		}
		if err := store.CreateExercise(e); err != nil {
			return fmt.Errorf("failed to create exercise: %w", err)
		}
		color.Green("✓ Added exercise %s", e.Name)
		fmt.Printf("  %s position %d\n", faint.Sprint(short(e.ID)), e.OrderIndex+1)
		return nil
	},
}

var exerciseListCmd = &cobra.Command{
	Use:     "list <session-id>",
	Aliases: []string{"ls"},
	Short:   "List the exercises of a session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := resolve(models.KindSession, args[0])
		if err != nil {
			return err
		}
		exercises, err := store.ListExercises(sessionID)
		if err != nil {
			return fmt.Errorf("failed to list exercises: %w", err)
		}
		if len(exercises) == 0 {
			fmt.Println("No exercises found.")
			return nil
		}
		for _, e := range exercises {
			muscle := ""
			if e.MuscleGroup != nil {
				muscle = *e.MuscleGroup
			}
			group := ""
			if e.ConjugatedGroup != nil {
				group = faint.Sprintf(" superset %s", *e.ConjugatedGroup)
			}
			fmt.Printf("%s%s %2d. %s %s%s\n",
				dirtyMark(&e.Meta),
				faint.Sprint(short(e.ID)),
				e.OrderIndex+1,
				padRight(e.Name, 24),
				faint.Sprint(padRight(muscle, 10)),
				group)
		}
		return nil
	},
}

var exerciseUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindExercise, args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		err = store.UpdateExercise(id, func(e *models.Exercise) {
			if exName != "" {
				e.Name = exName
			}
			if flags.Changed("order") {
				e.OrderIndex = exOrder
			}
			if flags.Changed("muscle") {
				e.MuscleGroup = optionalString(exMuscle)
			}
			if flags.Changed("equipment") {
				e.Equipment = optionalString(exEquipment)
			}
			if flags.Changed("notes") {
				e.Notes = optionalString(exNotes)
			}
			if flags.Changed("group") {
				e.ConjugatedGroup = optionalString(exGroup)
			}
			if flags.Changed("group-order") {
				groupOrder := exGroupOrder
				e.ConjugatedOrder = &groupOrder
			}
		})
		if err != nil {
			return fmt.Errorf("failed to update exercise: %w", err)
		}
		color.Green("✓ Updated exercise %s", short(id))
		return nil
	},
}

var exerciseDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark an exercise completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindExercise, args[0])
		if err != nil {
			return err
		}
		now := timeNow()
		if err := store.UpdateExercise(id, func(e *models.Exercise) { e.CompletedAt = &now }); err != nil {
			return fmt.Errorf("failed to complete exercise: %w", err)
		}
		color.Green("✓ Completed exercise %s", short(id))
		return nil
	},
}

var exerciseDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "del"},
	Short:   "Delete an exercise and its sets",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteRecord(models.KindExercise, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{exerciseAddCmd, exerciseUpdateCmd} {
		c.Flags().StringVar(&exMuscle, "muscle", "", "muscle group")
		c.Flags().StringVar(&exEquipment, "equipment", "", "equipment")
		c.Flags().StringVar(&exNotes, "notes", "", "notes")
		c.Flags().IntVar(&exOrder, "order", 0, "position within the session, zero-based (default: append)")
		c.Flags().StringVar(&exGroup, "group", "", "superset label")
		c.Flags().IntVar(&exGroupOrder, "group-order", 0, "position within the superset")
	}
	exerciseUpdateCmd.Flags().StringVar(&exName, "name", "", "new name")

	exerciseCmd.AddCommand(exerciseAddCmd, exerciseListCmd, exerciseUpdateCmd, exerciseDoneCmd, exerciseDeleteCmd)
	rootCmd.AddCommand(exerciseCmd)
}
