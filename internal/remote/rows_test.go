// ABOUTME: Tests for the entity to remote-row mapping.
// ABOUTME: Checks snake_case columns, explicit nulls and lossless round trips.
package remote

import (
	"testing"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSet() *models.Set {
	at := time.Date(2024, 3, 4, 5, 6, 7, 123456789, time.UTC)
	s := models.NewSet("user-1", "ex-1", 2, 5, 102.5).WithRPE(8.5)
	s.ID = "set-1"
	s.CreatedAt = at
	s.UpdatedAt = at
	s.NeedsSync = true
	s.DropSets = []models.DropSegment{{Weight: 80, Repetitions: 4}}
	models.Normalize(s)
	return s
}

func TestToRowUsesRemoteColumns(t *testing.T) {
	row, err := ToRow(sampleSet())
	require.NoError(t, err)

	assert.Equal(t, "ex-1", row["exercise_id"])
	assert.Equal(t, "2024-03-04T05:06:07.123456Z", row["updated_at"])
	assert.Contains(t, row, "notes", "absent optionals are sent as explicit nulls")
	assert.Nil(t, row["notes"])
	assert.NotContains(t, row, "needs_sync")
	assert.NotContains(t, row, "synced_at")
	assert.Len(t, row, len(Columns(models.KindSet)))
}

func TestRowRoundTrip(t *testing.T) {
	in := sampleSet()
	row, err := ToRow(in)
	require.NoError(t, err)

	out, err := FromRow(models.KindSet, row)
	require.NoError(t, err)
	got := out.(*models.Set)

	assert.Equal(t, in.ID, got.ID)
	assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt), "timestamp precision must survive")
	assert.Equal(t, in.Weight, got.Weight)
	require.NotNil(t, got.RPE)
	assert.Equal(t, 8.5, *got.RPE)
	assert.Equal(t, in.DropSets, got.DropSets)
	assert.False(t, got.NeedsSync, "remote rows carry no dirty flag")
}

func TestFromRowDecodesJSONText(t *testing.T) {
	row, err := ToRow(sampleSet())
	require.NoError(t, err)
	row["drop_sets"] = []byte(`[{"weight":60,"repetitions":6}]`)
	row["order_index"] = int64(2)

	out, err := FromRow(models.KindSet, row)
	require.NoError(t, err)
	got := out.(*models.Set)
	assert.Equal(t, []models.DropSegment{{Weight: 60, Repetitions: 6}}, got.DropSets)
	assert.Equal(t, 2, got.OrderIndex)
}

func TestParentColumn(t *testing.T) {
	assert.Equal(t, "", ParentColumn(models.KindPeriodization))
	assert.Equal(t, "periodization_id", ParentColumn(models.KindSession))
	assert.Equal(t, "session_id", ParentColumn(models.KindExercise))
	assert.Equal(t, "exercise_id", ParentColumn(models.KindSet))
}

func TestRowSeq(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{"driver integer", int64(7), 7, false},
		{"json number", float64(42), 42, false},
		{"quoted bigint", "9007199254740993", 9007199254740993, false},
		{"fractional", 1.5, 0, true},
		{"negative", float64(-1), 0, true},
		{"missing", nil, 0, true},
		{"wrong type", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rowSeq(Row{SeqColumn: tt.value})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
