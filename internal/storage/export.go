// ABOUTME: Export and import functionality for training data.
// ABOUTME: Supports JSON, YAML (full fidelity, tombstones included) and a Markdown training log.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion identifies the export layout.
const ExportVersion = "1.0"

// ExportData represents the full export format. Records keep their
// lifecycle fields so an import reproduces sync state exactly.
type ExportData struct {
	Version        string                  `json:"version" yaml:"version"`
	ExportedAt     time.Time               `json:"exported_at" yaml:"exported_at"`
	Tool           string                  `json:"tool" yaml:"tool"`
	Periodizations []*models.Periodization `json:"periodizations" yaml:"periodizations"`
	Sessions       []*models.Session       `json:"sessions" yaml:"sessions"`
	Exercises      []*models.Exercise      `json:"exercises" yaml:"exercises"`
	Sets           []*models.Set           `json:"sets" yaml:"sets"`
}

// records returns the export's records in parent-before-child order.
func (e *ExportData) records() []models.Record {
	var out []models.Record
	for _, p := range e.Periodizations {
		out = append(out, p)
	}
	for _, s := range e.Sessions {
		out = append(out, s)
	}
	for _, x := range e.Exercises {
		out = append(out, x)
	}
	for _, s := range e.Sets {
		out = append(out, s)
	}
	return out
}

// GetAllData retrieves every record, tombstones included, for export.
func (s *Store) GetAllData() (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Tool:       "periodize",
	}
	for _, kind := range models.Kinds {
		recs, err := s.AllRecords(kind)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind.Table(), err)
		}
		for _, r := range recs {
			switch v := r.(type) {
			case *models.Periodization:
				data.Periodizations = append(data.Periodizations, v)
			case *models.Session:
				data.Sessions = append(data.Sessions, v)
			case *models.Exercise:
				data.Exercises = append(data.Exercises, v)
			case *models.Set:
				data.Sets = append(data.Sets, v)
			}
		}
	}
	return data, nil
}

// ImportSummary holds counts of imported records.
type ImportSummary struct {
	Periodizations int
	Sessions       int
	Exercises      int
	Sets           int
}

// Total is the number of records imported.
func (s ImportSummary) Total() int {
	return s.Periodizations + s.Sessions + s.Exercises + s.Sets
}

func (s *ImportSummary) count(kind models.Kind) {
	switch kind {
	case models.KindPeriodization:
		s.Periodizations++
	case models.KindSession:
		s.Sessions++
	case models.KindExercise:
		s.Exercises++
	case models.KindSet:
		s.Sets++
	}
}

// ImportData restores records verbatim, parents first. Existing ids are overwritten.
func (s *Store) ImportData(data *ExportData) (*ImportSummary, error) {
	summary := &ImportSummary{}
	for _, rec := range data.records() {
		if err := s.Restore(rec); err != nil {
			return summary, fmt.Errorf("import %s %s: %w", rec.Kind(), rec.Base().ID, err)
		}
		summary.count(rec.Kind())
	}
	return summary, nil
}

// ExportJSON exports all data as JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	data, err := s.GetAllData()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all data as YAML.
func (s *Store) ExportYAML() ([]byte, error) {
	data, err := s.GetAllData()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(data)
}

// ImportJSON imports data from JSON bytes.
func (s *Store) ImportJSON(raw []byte) (*ImportSummary, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return s.ImportData(&data)
}

// ImportYAML imports data from YAML bytes.
func (s *Store) ImportYAML(raw []byte) (*ImportSummary, error) {
	var data ExportData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal YAML: %w", err)
	}
	return s.ImportData(&data)
}

// ExportMarkdown renders the user's live training hierarchy as a Markdown log.
func (s *Store) ExportMarkdown(userID string) (string, error) {
	plans, err := s.ListPeriodizations(userID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	now := time.Now()
	sb.WriteString(fmt.Sprintf("# Training Export - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	for _, p := range plans {
		sb.WriteString(fmt.Sprintf("## %s\n\n", p.Name))
		end := "open"
		if p.EndDate != nil {
			end = p.EndDate.Format("2006-01-02")
		}
		sb.WriteString(fmt.Sprintf("%s to %s\n\n", p.StartDate.Format("2006-01-02"), end))

		sessions, err := s.ListSessions(p.ID)
		if err != nil {
			return "", err
		}
		for _, sess := range sessions {
			sb.WriteString(fmt.Sprintf("### %s (%s, %s)\n\n", sess.Name, sess.ScheduledAt.Format("2006-01-02"), sess.Status))
			exercises, err := s.ListExercises(sess.ID)
			if err != nil {
				return "", err
			}
			for _, ex := range exercises {
				if err := s.writeExerciseTable(&sb, ex); err != nil {
					return "", err
				}
			}
		}
	}
	return sb.String(), nil
}

func (s *Store) writeExerciseTable(sb *strings.Builder, ex *models.Exercise) error {
	sets, err := s.ListSets(ex.ID)
	if err != nil {
		return err
	}
	sb.WriteString(fmt.Sprintf("**%d. %s**\n\n", ex.OrderIndex+1, ex.Name))
	if len(sets) == 0 {
		return nil
	}
	sb.WriteString("| Set | Weight | Reps | RPE | Notes |\n")
	sb.WriteString("|-----|--------|------|-----|-------|\n")
	for _, set := range sets {
		rpe := ""
		if set.RPE != nil {
			rpe = fmt.Sprintf("%.1f", *set.RPE)
		}
		notes := ""
		if set.Notes != nil {
			notes = *set.Notes
		}
		sb.WriteString(fmt.Sprintf("| %d | %.2f | %d | %s | %s |\n",
			set.OrderIndex+1, set.Weight, set.Repetitions, rpe, notes))
	}
	sb.WriteString("\n")
	return nil
}
