// ABOUTME: CLI commands for sets: reps, load, effort and technique segments.
// ABOUTME: Drop sets use --drop 80x6,60x8; rest-pause and clusters use --mini 3:15,2:15.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/models"
	"github.com/spf13/cobra"
)

var (
	setRPE       float64
	setRIR       int
	setRest      int
	setTechnique string
	setType      string
	setNotes     string
	setDone      bool
	setDrop      string
	setMini      string
	setReps      int
	setWeight    float64
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Log sets of an exercise",
	Long: `Log the sets of an exercise.

TECHNIQUES:

  drop_set     --drop 80x6,60x8        weight x reps for each drop
  rest_pause   --mini 3:15,2:15        reps:rest-seconds for each mini set
  cluster      --mini 2:20,2:20,2:20

EXAMPLES:

  periodize set add 77be 5 120 --rpe 8 --done
  periodize set add 77be 8 100 --technique drop_set --drop 80x6,60x8
  periodize set list 77be
  periodize set update a1b2 --reps 6 --rir 1
  periodize set rm a1b2`,
}

var setAddCmd = &cobra.Command{
	Use:   "add <exercise-id> <reps> <weight>",
	Short: "Add a set",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		exerciseID, err := resolve(models.KindExercise, args[0])
		if err != nil {
			return err
		}
		reps, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid reps: %s", args[1])
		}
		weight, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid weight: %s", args[2])
		}
		existing, err := store.ListSets(exerciseID)
		if err != nil {
			return err
		}
		seg, err := parseSegments(cmd)
		if err != nil {
			return err
		}
		s := models.NewSet(userID, exerciseID, len(existing), reps, weight)
		applySetFlags(cmd, s, seg)
		if err := store.CreateSet(s); err != nil {
			return fmt.Errorf("failed to create set: %w", err)
		}
		color.Green("✓ Added set %d", s.OrderIndex+1)
		fmt.Printf("  %s %s\n", faint.Sprint(short(s.ID)), describeSet(s))
		return nil
	},
}

var setListCmd = &cobra.Command{
	Use:     "list <exercise-id>",
	Aliases: []string{"ls"},
	Short:   "List the sets of an exercise",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exerciseID, err := resolve(models.KindExercise, args[0])
		if err != nil {
			return err
		}
		sets, err := store.ListSets(exerciseID)
		if err != nil {
			return fmt.Errorf("failed to list sets: %w", err)
		}
		if len(sets) == 0 {
			fmt.Println("No sets found.")
			return nil
		}
		var volume float64
		for _, s := range sets {
			fmt.Printf("%s%s %2d. %s\n", dirtyMark(&s.Meta), faint.Sprint(short(s.ID)), s.OrderIndex+1, describeSet(s))
			volume += s.Volume()
		}
		fmt.Printf("%s %.1f\n", faint.Sprint("volume"), volume)
		return nil
	},
}

var setUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindSet, args[0])
		if err != nil {
			return err
		}
		seg, err := parseSegments(cmd)
		if err != nil {
			return err
		}
		err = store.UpdateSet(id, func(s *models.Set) {
			if cmd.Flags().Changed("reps") {
				s.Repetitions = setReps
			}
			if cmd.Flags().Changed("weight") {
				s.Weight = setWeight
			}
			applySetFlags(cmd, s, seg)
		})
		if err != nil {
			return fmt.Errorf("failed to update set: %w", err)
		}
		color.Green("✓ Updated set %s", short(id))
		return nil
	},
}

var setDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a set completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolve(models.KindSet, args[0])
		if err != nil {
			return err
		}
		now := timeNow()
		if err := store.UpdateSet(id, func(s *models.Set) { s.CompletedAt = &now }); err != nil {
			return fmt.Errorf("failed to complete set: %w", err)
		}
		color.Green("✓ Completed set %s", short(id))
		return nil
	},
}

var setDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "del"},
	Short:   "Delete a set",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteRecord(models.KindSet, args[0])
	},
}

type segments struct {
	drops []models.DropSegment
	minis []models.PauseSegment
}

// parseSegments parses --drop and --mini before anything is written.
func parseSegments(cmd *cobra.Command) (segments, error) {
	var seg segments
	var err error
	if cmd.Flags().Changed("drop") {
		if seg.drops, err = parseDrops(setDrop); err != nil {
			return seg, err
		}
	}
	if cmd.Flags().Changed("mini") {
		if seg.minis, err = parseMinis(setMini); err != nil {
			return seg, err
		}
	}
	return seg, nil
}

// applySetFlags copies the optional set flags that were given onto s.
func applySetFlags(cmd *cobra.Command, s *models.Set, seg segments) {
	flags := cmd.Flags()
	if flags.Changed("rpe") {
		s.WithRPE(setRPE)
	}
	if flags.Changed("rir") {
		s.WithRIR(setRIR)
	}
	if flags.Changed("rest") {
		rest := setRest
		s.RestTime = &rest
	}
	if flags.Changed("technique") {
		s.Technique = optionalString(setTechnique)
	}
	if flags.Changed("type") {
		s.SetType = optionalString(setType)
	}
	if flags.Changed("notes") {
		s.Notes = optionalString(setNotes)
	}
	if setDone && s.CompletedAt == nil {
		now := timeNow()
		s.CompletedAt = &now
	}
	if flags.Changed("drop") {
		s.DropSets = seg.drops
	}
	if flags.Changed("mini") {
		if s.Technique != nil && *s.Technique == models.TechniqueCluster {
			s.Cluster = seg.minis
		} else {
			s.RestPause = seg.minis
		}
	}
}

// parseDrops parses "80x6,60x8" into drop segments.
func parseDrops(s string) ([]models.DropSegment, error) {
	var out []models.DropSegment
	for _, part := range splitList(s) {
		w, r, ok := strings.Cut(part, "x")
		if !ok {
			return nil, fmt.Errorf("invalid drop %q: use WEIGHTxREPS", part)
		}
		weight, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid drop weight %q", w)
		}
		reps, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("invalid drop reps %q", r)
		}
		out = append(out, models.DropSegment{Weight: weight, Repetitions: reps})
	}
	return out, nil
}

// parseMinis parses "3:15,2:15" into mini-set segments.
func parseMinis(s string) ([]models.PauseSegment, error) {
	var out []models.PauseSegment
	for _, part := range splitList(s) {
		r, rest, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid mini set %q: use REPS:REST", part)
		}
		reps, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("invalid mini set reps %q", r)
		}
		secs, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid mini set rest %q", rest)
		}
		out = append(out, models.PauseSegment{Repetitions: reps, RestSeconds: secs})
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// describeSet renders a one-line summary such as "5 × 120  RPE 8  ✓".
func describeSet(s *models.Set) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d × %g", s.Repetitions, s.Weight)
	if s.RPE != nil {
		fmt.Fprintf(&sb, "  RPE %g", *s.RPE)
	}
	if s.RIR != nil {
		fmt.Fprintf(&sb, "  RIR %d", *s.RIR)
	}
	if s.Technique != nil {
		sb.WriteString("  " + *s.Technique)
	}
	for _, d := range s.DropSets {
		fmt.Fprintf(&sb, " → %d × %g", d.Repetitions, d.Weight)
	}
	for _, m := range s.RestPause {
		fmt.Fprintf(&sb, " + %d", m.Repetitions)
	}
	for _, m := range s.Cluster {
		fmt.Fprintf(&sb, " + %d", m.Repetitions)
	}
	if s.CompletedAt != nil {
		sb.WriteString("  ✓")
	}
	return sb.String()
}

func init() {
	for _, c := range []*cobra.Command{setAddCmd, setUpdateCmd} {
		c.Flags().Float64Var(&setRPE, "rpe", 0, "rating of perceived exertion (0-10)")
		c.Flags().IntVar(&setRIR, "rir", 0, "reps in reserve")
		c.Flags().IntVar(&setRest, "rest", 0, "rest after the set, seconds")
		c.Flags().StringVar(&setTechnique, "technique", "", "drop_set, rest_pause or cluster")
		c.Flags().StringVar(&setType, "type", "", "set type, e.g. warmup or working")
		c.Flags().StringVar(&setNotes, "notes", "", "notes")
		c.Flags().BoolVar(&setDone, "done", false, "mark completed now")
		c.Flags().StringVar(&setDrop, "drop", "", "drop segments WEIGHTxREPS,...")
		c.Flags().StringVar(&setMini, "mini", "", "mini sets REPS:REST,...")
	}
	setUpdateCmd.Flags().IntVar(&setReps, "reps", 0, "repetitions")
	setUpdateCmd.Flags().Float64Var(&setWeight, "weight", 0, "weight")

	setCmd.AddCommand(setAddCmd, setListCmd, setUpdateCmd, setDoneCmd, setDeleteCmd)
	rootCmd.AddCommand(setCmd)
}
