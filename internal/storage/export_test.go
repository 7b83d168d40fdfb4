// ABOUTME: Tests for export, import and backend migration.
// ABOUTME: Verifies tombstones and dirty flags survive every format.
package storage

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/harperreed/periodize/internal/models"
)

func TestExportJSON(t *testing.T) {
	s := NewStore(setupTestDB(t))
	tr := seedTree(t, s)
	if err := s.DeleteSet(tr.set.ID); err != nil {
		t.Fatalf("DeleteSet failed: %v", err)
	}

	data, err := s.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	var export ExportData
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if export.Version != ExportVersion {
		t.Errorf("Expected version %s, got %s", ExportVersion, export.Version)
	}
	if export.Tool != "periodize" {
		t.Errorf("Expected tool periodize, got %s", export.Tool)
	}
	if len(export.Sets) != 1 || export.Sets[0].DeletedAt == nil {
		t.Errorf("Expected the tombstoned set in the export, got %+v", export.Sets)
	}
}

func TestImportJSONIntoOtherBackend(t *testing.T) {
	src := NewStore(setupTestDB(t))
	tr := seedTree(t, src)
	data, err := src.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	dst := NewStore(setupTestKV(t))
	summary, err := dst.ImportJSON(data)
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if summary.Total() != 4 {
		t.Errorf("Expected 4 imported records, got %d", summary.Total())
	}
	got, err := dst.GetSet(tr.set.ID)
	if err != nil {
		t.Fatalf("GetSet failed: %v", err)
	}
	if !got.NeedsSync || !got.UpdatedAt.Equal(tr.set.UpdatedAt) {
		t.Errorf("import must preserve lifecycle fields: %+v", got.Meta)
	}
}

func TestExportYAMLRoundTrip(t *testing.T) {
	src := NewStore(setupTestKV(t))
	tr := seedTree(t, src)
	data, err := src.ExportYAML()
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}
	if !strings.Contains(string(data), "Back squat") {
		t.Errorf("YAML should contain the exercise name")
	}

	dst := NewStore(setupTestDB(t))
	if _, err := dst.ImportYAML(data); err != nil {
		t.Fatalf("ImportYAML failed: %v", err)
	}
	got, err := dst.GetPeriodization(tr.plan.ID)
	if err != nil {
		t.Fatalf("GetPeriodization failed: %v", err)
	}
	if got.Name != tr.plan.Name || !got.CreatedAt.Equal(tr.plan.CreatedAt) {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestExportMarkdown(t *testing.T) {
	s := NewStore(setupTestDB(t))
	seedTree(t, s)

	md, err := s.ExportMarkdown(testUser)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	for _, want := range []string{"# Training Export", "## Strength block", "### Day 1", "**1. Back squat**", "| 1 | 100.00 | 5 | 8.0 |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMigrateData(t *testing.T) {
	src := NewStore(setupTestDB(t))
	tr := seedTree(t, src)
	if err := src.DeleteExercise(tr.exercise.ID); err != nil {
		t.Fatalf("DeleteExercise failed: %v", err)
	}

	dst := NewStore(setupTestKV(t))
	summary, err := MigrateData(src, dst)
	if err != nil {
		t.Fatalf("MigrateData failed: %v", err)
	}
	if summary.Periodizations != 1 || summary.Sessions != 1 || summary.Exercises != 1 || summary.Sets != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if _, err := dst.GetExercise(tr.exercise.ID); err == nil {
		t.Errorf("tombstone must stay hidden after migration")
	}
	got, err := dst.GetRecord(models.KindExercise, tr.exercise.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Base().DeletedAt == nil {
		t.Errorf("tombstone must survive migration")
	}
}

func TestIsDirNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := IsDirNonEmpty(dir)
	if err != nil || empty {
		t.Errorf("expected empty dir: %v %v", empty, err)
	}
	missing, err := IsDirNonEmpty(dir + "/nope")
	if err != nil || missing {
		t.Errorf("expected missing dir to be empty: %v %v", missing, err)
	}
}
