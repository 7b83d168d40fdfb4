// ABOUTME: Tests for the install-skill command.
// ABOUTME: Validates installation, confirmation, up-to-date detection and the banner text.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSkillInstallWritesEmbeddedFile(t *testing.T) {
	home := t.TempDir()
	if err := installSkill(&bytes.Buffer{}, home, nil, true); err != nil {
		t.Fatalf("installSkill: %v", err)
	}

	got, err := os.ReadFile(skillPathFor(home))
	if err != nil {
		t.Fatalf("Skill file not created: %v", err)
	}
	want, err := skillFS.ReadFile(skillFile)
	if err != nil {
		t.Fatalf("Failed to read embedded skill: %v", err)
	}
	if string(got) != string(want) {
		t.Error("installed skill differs from embedded skill")
	}
}

func TestSkillInstallConfirmation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		written bool
	}{
		{"declined", "n\n", false},
		{"empty answer", "\n", false},
		{"confirmed", "yes\n", true},
		{"confirmed without newline", "Y", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			var out bytes.Buffer
			if err := installSkill(&out, home, strings.NewReader(tt.input), false); err != nil {
				t.Fatalf("installSkill: %v", err)
			}
			_, err := os.Stat(skillPathFor(home))
			if tt.written && err != nil {
				t.Errorf("skill not written: %v", err)
			}
			if !tt.written && !os.IsNotExist(err) {
				t.Errorf("skill written after declining: %v", err)
			}
			if !strings.Contains(out.String(), "[y/N]") {
				t.Errorf("prompt missing from output:\n%s", out.String())
			}
		})
	}
}

func TestSkillInstallUpToDateSkipsPrompt(t *testing.T) {
	home := t.TempDir()
	if err := installSkill(&bytes.Buffer{}, home, nil, true); err != nil {
		t.Fatalf("installSkill: %v", err)
	}
	var out bytes.Buffer
	// No input: a prompt would read EOF and cancel.
	if err := installSkill(&out, home, strings.NewReader(""), false); err != nil {
		t.Fatalf("installSkill: %v", err)
	}
	if !strings.Contains(out.String(), "already up to date") {
		t.Errorf("expected up-to-date notice, got:\n%s", out.String())
	}
	if strings.Contains(out.String(), "[y/N]") {
		t.Error("identical install must not prompt")
	}
}

func TestSkillInstallReplacesOutdatedCopy(t *testing.T) {
	home := t.TempDir()
	dest := skillPathFor(home)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := installSkill(&out, home, nil, true); err != nil {
		t.Fatalf("installSkill: %v", err)
	}
	if !strings.Contains(out.String(), "older copy will be replaced") {
		t.Errorf("expected replacement notice, got:\n%s", out.String())
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) == "old" {
		t.Error("outdated skill was not replaced")
	}
}

func TestSkillBannerFollowsSkillFile(t *testing.T) {
	content := []byte("---\nname: x\ndescription: Lifts things.\n---\n\n# x\n\n## Logging\ntext\n## Sync\n")
	banner := skillBanner(content, "/tmp/SKILL.md", false)
	for _, want := range []string{"Lifts things.", "• Logging", "• Sync", "/tmp/SKILL.md"} {
		if !strings.Contains(banner, want) {
			t.Errorf("banner missing %q:\n%s", want, banner)
		}
	}
	if frontmatterField([]byte("no frontmatter"), "description") != "" {
		t.Error("expected empty description without frontmatter")
	}
}

func TestSkillContent(t *testing.T) {
	content, err := skillFS.ReadFile(skillFile)
	if err != nil {
		t.Fatal(err)
	}
	text := string(content)
	for _, marker := range []string{"name: periodize", "periodize plan add", "periodize sync now", "periodize stats"} {
		if !strings.Contains(text, marker) {
			t.Errorf("SKILL.md missing %q", marker)
		}
	}
	if frontmatterField(content, "name") != "periodize" {
		t.Error("frontmatter name must be periodize")
	}
	if len(skillSections(content)) == 0 {
		t.Error("SKILL.md has no sections")
	}
}
