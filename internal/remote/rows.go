// ABOUTME: Maps entities to and from remote relational rows in snake_case.
// ABOUTME: Local-only sync columns never leave the device.
package remote

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/harperreed/periodize/internal/models"
)

// Row is one remote relational row keyed by snake_case column name.
type Row map[string]any

var metaColumns = []string{"id", "user_id", "created_at", "updated_at", "deleted_at"}

var kindColumns = map[models.Kind][]string{
	models.KindPeriodization: {"name", "description", "start_date", "end_date"},
	models.KindSession:       {"periodization_id", "name", "scheduled_at", "completed_at", "status", "notes"},
	models.KindExercise: {"session_id", "name", "muscle_group", "equipment", "notes", "order_index",
		"conjugated_group", "conjugated_order", "completed_at"},
	models.KindSet: {"exercise_id", "order_index", "repetitions", "weight", "technique", "set_type",
		"rest_time", "rir", "rpe", "notes", "completed_at", "drop_sets", "rest_pause", "cluster"},
}

var timeColumns = map[string]bool{
	"created_at": true, "updated_at": true, "deleted_at": true,
	"start_date": true, "end_date": true, "scheduled_at": true, "completed_at": true,
}

var jsonColumns = map[string]bool{"drop_sets": true, "rest_pause": true, "cluster": true}

// Columns returns the remote columns of kind in a stable order.
func Columns(kind models.Kind) []string {
	return append(append([]string{}, metaColumns...), kindColumns[kind]...)
}

// ParentColumn returns the foreign-key column of kind, or "" for periodizations.
func ParentColumn(kind models.Kind) string {
	if kind.Parent() == "" {
		return ""
	}
	return kindColumns[kind][0]
}

// ToRow maps a record to its remote row. Every column is present, absent
// optionals as nil, so an upsert clears fields that were cleared locally.
func ToRow(rec models.Record) (Row, error) {
	kind := rec.Kind()
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}

	row := Row{}
	for _, col := range Columns(kind) {
		v := fields[col]
		if s, ok := v.(string); ok && timeColumns[col] && s != "" {
			t, err := models.ParseTime(s)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", kind, col, err)
			}
			v = models.FormatTime(t)
		}
		row[col] = v
	}
	return row, nil
}

// FromRow maps a remote row back to a record. Array columns may arrive
// as JSON arrays or as JSON-encoded text.
func FromRow(kind models.Kind, row Row) (models.Record, error) {
	rec, err := models.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(row))
	for col, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if s, ok := v.(string); ok && jsonColumns[col] {
			if s == "" {
				v = nil
			} else {
				v = json.RawMessage(s)
			}
		}
		fields[col] = v
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal %s row: %w", kind, err)
	}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", kind, err)
	}
	models.Normalize(rec)
	return rec, nil
}

// rowSeq reads the server sequence of a row. Drivers hand back int64,
// JSON decoding gives float64, and some gateways quote bigints.
func rowSeq(row Row) (int64, error) {
	switch v := row[SeqColumn].(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || v < 0 {
			return 0, fmt.Errorf("invalid %s: %v", SeqColumn, v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, fmt.Errorf("row has no %s", SeqColumn)
	default:
		return 0, fmt.Errorf("invalid %s type %T", SeqColumn, v)
	}
}
