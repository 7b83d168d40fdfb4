// ABOUTME: CLI commands for training statistics: dashboard, progression and records.
// ABOUTME: The dashboard renders as lipgloss panels; --json prints raw data.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/stats"
	"github.com/spf13/cobra"
)

var statsJSON bool

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2).
			MarginRight(1)
	labelStyle = lipgloss.NewStyle().Faint(true)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true).MarginBottom(1)
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Training dashboard",
	Long: `Show headline training numbers for the signed-in user.

EXAMPLES:

  periodize stats
  periodize stats progression "Back Squat"
  periodize stats prs
  periodize stats --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		d, err := stats.BuildDashboard(store, userID, timeNow())
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(d)
		}
		fmt.Println(renderDashboard(d))
		return nil
	},
}

var statsProgressionCmd = &cobra.Command{
	Use:   "progression <exercise>",
	Short: "Per-session top weight, volume and estimated 1RM for an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		points, err := stats.Progression(store, userID, args[0])
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(points)
		}
		if len(points) == 0 {
			fmt.Printf("No sets logged for %s.\n", args[0])
			return nil
		}
		fmt.Println(titleStyle.Render(args[0]))
		fmt.Printf("%s %s %s %s %s\n",
			labelStyle.Render(padRight("date", 16)),
			labelStyle.Render(padRight("sets", 5)),
			labelStyle.Render(padRight("top", 8)),
			labelStyle.Render(padRight("e1RM", 8)),
			labelStyle.Render("volume"))
		for _, p := range points {
			fmt.Printf("%s %s %s %s %.0f\n",
				padRight(fmtDate(p.Date), 16),
				padRight(fmt.Sprint(p.Sets), 5),
				padRight(fmt.Sprintf("%g", p.TopWeight), 8),
				valueStyle.Render(padRight(fmt.Sprintf("%.1f", p.EstOneRM), 8)),
				p.Volume)
		}
		return nil
	},
}

var statsPRCmd = &cobra.Command{
	Use:     "prs",
	Aliases: []string{"records"},
	Short:   "Best set per exercise",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUser()
		if err != nil {
			return err
		}
		records, err := stats.PersonalRecords(store, userID)
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No sets logged yet.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s %s × %d  %s %.1f  %s\n",
				padRight(truncate(r.Exercise, 24), 24),
				valueStyle.Render(fmt.Sprintf("%g", r.MaxWeight)),
				r.RepsAtMax,
				labelStyle.Render("e1RM"),
				r.BestOneRM,
				faint.Sprint(r.Date.Local().Format("2006-01-02")))
		}
		return nil
	},
}

func renderDashboard(d *stats.Dashboard) string {
	panel := func(title string, rows ...[2]string) string {
		var sb strings.Builder
		sb.WriteString(titleStyle.Render(title))
		for i, row := range rows {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(labelStyle.Render(padRight(row[0], 11)))
			sb.WriteString(valueStyle.Render(row[1]))
		}
		return panelStyle.Render(sb.String())
	}

	last := "never"
	if d.LastCompleted != nil {
		last = d.LastCompleted.Local().Format("2006-01-02")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		panel("Plans",
			[2]string{"total", fmt.Sprint(d.Periodizations)},
			[2]string{"active", fmt.Sprint(d.ActivePeriodizations)},
		),
		panel("Sessions",
			[2]string{"planned", fmt.Sprint(d.Sessions[models.SessionPlanned])},
			[2]string{"running", fmt.Sprint(d.Sessions[models.SessionInProgress])},
			[2]string{"completed", fmt.Sprint(d.Sessions[models.SessionCompleted])},
			[2]string{"last", last},
		),
		panel("Work",
			[2]string{"exercises", fmt.Sprint(d.Exercises)},
			[2]string{"sets", fmt.Sprintf("%d/%d", d.CompletedSets, d.Sets)},
			[2]string{"volume", fmt.Sprintf("%.0f", d.TotalVolume)},
		),
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	statsCmd.PersistentFlags().BoolVar(&statsJSON, "json", false, "print JSON")
	statsCmd.AddCommand(statsProgressionCmd, statsPRCmd)
	rootCmd.AddCommand(statsCmd)
}
