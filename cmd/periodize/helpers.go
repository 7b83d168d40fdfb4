// ABOUTME: Shared CLI helpers: time parsing, id display, output padding and user lookup.
// ABOUTME: Natural-language dates ("tomorrow 7am", "next monday") go through olebedev/when.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/models"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var faint = color.New(color.Faint)

// timeNow is the CLI clock.
var timeNow = time.Now

var timeFormats = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC3339,
}

// parseTime accepts the fixed layouts in local time, then falls back to
// natural language relative to now.
func parseTime(s string) (time.Time, error) {
	return parseTimeAt(s, timeNow())
}

func parseTimeAt(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	for _, f := range timeFormats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time format: %w", err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized time format")
	}
	return r.Time, nil
}

// optionalTime parses s when set.
func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return &t, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func fmtDate(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// currentUser returns the signed-in user or an error telling how to sign in.
func currentUser() (string, error) {
	if id := cfg.GetUserID(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("not signed in: run 'periodize login <user-id>'")
}

// resolve expands an id prefix of the given kind.
func resolve(kind models.Kind, idOrPrefix string) (string, error) {
	return store.ResolveID(kind, idOrPrefix)
}

func dirtyMark(m *models.Meta) string {
	if m.NeedsSync {
		return color.YellowString("*")
	}
	return " "
}
