// ABOUTME: install-skill command: writes the embedded SKILL.md for Claude Code.
// ABOUTME: The banner is built from the skill's own frontmatter and section headings.

package main

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

//go:embed skill/SKILL.md
var skillFS embed.FS

const skillFile = "skill/SKILL.md"

var skillSkipConfirm bool

var installSkillCmd = &cobra.Command{
	Use:   "install-skill",
	Short: "Install Claude Code skill",
	Long: `Install the periodize skill for Claude Code.

Writes the skill definition to ~/.claude/skills/periodize/SKILL.md.
Re-running after an upgrade replaces an outdated copy; an identical
copy is left alone.

EXAMPLES:
  periodize install-skill
  periodize install-skill -y`,
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		return installSkill(cmd.OutOrStdout(), home, cmd.InOrStdin(), skillSkipConfirm)
	},
}

func init() {
	installSkillCmd.Flags().BoolVarP(&skillSkipConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installSkillCmd)
}

func skillPathFor(home string) string {
	return filepath.Join(home, ".claude", "skills", "periodize", "SKILL.md")
}

func installSkill(out io.Writer, home string, in io.Reader, skipConfirm bool) error {
	content, err := skillFS.ReadFile(skillFile)
	if err != nil {
		return fmt.Errorf("failed to read embedded skill: %w", err)
	}
	dest := skillPathFor(home)

	existing, err := os.ReadFile(dest)
	switch {
	case err == nil && bytes.Equal(existing, content):
		fmt.Fprintln(out, color.GreenString("✓ Skill already up to date:"), dest)
		return nil
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("failed to read installed skill: %w", err)
	}

	fmt.Fprintln(out, skillBanner(content, dest, err == nil))
	if !skipConfirm && !confirm(out, in, "Install the periodize skill?") {
		fmt.Fprintln(out, "Installation canceled.")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("failed to create skill directory: %w", err)
	}
	if err := os.WriteFile(dest, content, 0600); err != nil {
		return fmt.Errorf("failed to write skill file: %w", err)
	}
	fmt.Fprintln(out, color.GreenString("✓ Installed periodize skill"))
	return nil
}

// skillBanner describes the skill from its frontmatter description and its
// second-level headings, so the text tracks SKILL.md.
func skillBanner(content []byte, dest string, replacing bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("periodize skill for Claude Code"))
	b.WriteString("\n")
	if desc := frontmatterField(content, "description"); desc != "" {
		b.WriteString(lipgloss.NewStyle().Width(58).Render(desc))
		b.WriteString("\n\n")
	}
	for _, h := range skillSections(content) {
		b.WriteString("  • " + h + "\n")
	}
	b.WriteString("\n" + labelStyle.Render("destination ") + dest)
	if replacing {
		b.WriteString("\n" + color.YellowString("an older copy will be replaced"))
	}
	return panelStyle.Render(b.String())
}

func frontmatterField(content []byte, key string) string {
	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		return ""
	}
	head, _, ok := strings.Cut(text[4:], "\n---")
	if !ok {
		return ""
	}
	for _, line := range strings.Split(head, "\n") {
		if v, found := strings.CutPrefix(line, key+":"); found {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func skillSections(content []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		if h, ok := strings.CutPrefix(sc.Text(), "## "); ok {
			out = append(out, strings.TrimSpace(h))
		}
	}
	return out
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(out io.Writer, in io.Reader, question string) bool {
	if in == nil {
		return false
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
