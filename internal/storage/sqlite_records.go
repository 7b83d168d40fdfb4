// ABOUTME: Record persistence for the SQLite backend.
// ABOUTME: Per-table column codecs, upserts, ordered scans and sync bookkeeping queries.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// sqlRecords implements the record half of Backend over a querier.
type sqlRecords struct {
	q querier
}

var metaColumns = []string{"id", "user_id", "created_at", "updated_at", "deleted_at", "synced_at", "needs_sync"}

// tableCodec maps one entity kind to its table columns.
type tableCodec struct {
	parentCol string
	columns   []string
	args      func(models.Record) ([]any, error)
	// scan returns an empty record, the destinations for its columns,
	// and a finisher that converts text columns once Scan has run.
	scan func() (models.Record, []any, func() error)
}

var codecs = map[models.Kind]tableCodec{
	models.KindPeriodization: {
		columns: []string{"name", "description", "start_date", "end_date"},
		args: func(r models.Record) ([]any, error) {
			p := r.(*models.Periodization)
			return []any{p.Name, p.Description, timeArg(p.StartDate), nullTimeArg(p.EndDate)}, nil
		},
		scan: func() (models.Record, []any, func() error) {
			p := &models.Periodization{}
			var start string
			var end sql.NullString
			return p, []any{&p.Name, &p.Description, &start, &end}, func() error {
				var err error
				if p.StartDate, err = models.ParseTime(start); err != nil {
					return err
				}
				p.EndDate, err = parseNullTime(end)
				return err
			}
		},
	},
	models.KindSession: {
		parentCol: "periodization_id",
		columns:   []string{"periodization_id", "name", "scheduled_at", "completed_at", "status", "notes"},
		args: func(r models.Record) ([]any, error) {
			s := r.(*models.Session)
			return []any{s.PeriodizationID, s.Name, timeArg(s.ScheduledAt), nullTimeArg(s.CompletedAt), string(s.Status), s.Notes}, nil
		},
		scan: func() (models.Record, []any, func() error) {
			s := &models.Session{}
			var scheduled, status string
			var completed sql.NullString
			return s, []any{&s.PeriodizationID, &s.Name, &scheduled, &completed, &status, &s.Notes}, func() error {
				var err error
				s.Status = models.SessionStatus(status)
				if s.ScheduledAt, err = models.ParseTime(scheduled); err != nil {
					return err
				}
				s.CompletedAt, err = parseNullTime(completed)
				return err
			}
		},
	},
	models.KindExercise: {
		parentCol: "session_id",
		columns: []string{"session_id", "name", "muscle_group", "equipment", "notes", "order_index",
			"conjugated_group", "conjugated_order", "completed_at"},
		args: func(r models.Record) ([]any, error) {
			e := r.(*models.Exercise)
			return []any{e.SessionID, e.Name, e.MuscleGroup, e.Equipment, e.Notes, e.OrderIndex,
				e.ConjugatedGroup, e.ConjugatedOrder, nullTimeArg(e.CompletedAt)}, nil
		},
		scan: func() (models.Record, []any, func() error) {
			e := &models.Exercise{}
			var completed sql.NullString
			return e, []any{&e.SessionID, &e.Name, &e.MuscleGroup, &e.Equipment, &e.Notes, &e.OrderIndex,
					&e.ConjugatedGroup, &e.ConjugatedOrder, &completed}, func() error {
					var err error
					e.CompletedAt, err = parseNullTime(completed)
					return err
				}
		},
	},
	models.KindSet: {
		parentCol: "exercise_id",
		columns: []string{"exercise_id", "order_index", "repetitions", "weight", "technique", "set_type",
			"rest_time", "rir", "rpe", "notes", "completed_at", "drop_sets", "rest_pause", "cluster"},
		args: func(r models.Record) ([]any, error) {
			s := r.(*models.Set)
			drops, err := jsonArg(s.DropSets)
			if err != nil {
				return nil, err
			}
			restPause, err := jsonArg(s.RestPause)
			if err != nil {
				return nil, err
			}
			cluster, err := jsonArg(s.Cluster)
			if err != nil {
				return nil, err
			}
			return []any{s.ExerciseID, s.OrderIndex, s.Repetitions, s.Weight, s.Technique, s.SetType,
				s.RestTime, s.RIR, s.RPE, s.Notes, nullTimeArg(s.CompletedAt), drops, restPause, cluster}, nil
		},
		scan: func() (models.Record, []any, func() error) {
			s := &models.Set{}
			var completed, drops, restPause, cluster sql.NullString
			return s, []any{&s.ExerciseID, &s.OrderIndex, &s.Repetitions, &s.Weight, &s.Technique, &s.SetType,
					&s.RestTime, &s.RIR, &s.RPE, &s.Notes, &completed, &drops, &restPause, &cluster}, func() error {
					var err error
					if s.CompletedAt, err = parseNullTime(completed); err != nil {
						return err
					}
					if err := parseJSONColumn(drops, &s.DropSets); err != nil {
						return err
					}
					if err := parseJSONColumn(restPause, &s.RestPause); err != nil {
						return err
					}
					return parseJSONColumn(cluster, &s.Cluster)
				}
		},
	},
}

func codecFor(kind models.Kind) (tableCodec, error) {
	c, ok := codecs[kind]
	if !ok {
		return tableCodec{}, fmt.Errorf("unknown entity kind: %q", kind)
	}
	return c, nil
}

func selectColumns(kind models.Kind, c tableCodec) string {
	return fmt.Sprintf("SELECT %s, %s FROM %s",
		strings.Join(metaColumns, ", "), strings.Join(c.columns, ", "), kind.Table())
}

// orderClause implements the parent-scoped ordering shared with the KV backend.
func orderClause(kind models.Kind) string {
	if kind.Ordered() {
		return " ORDER BY order_index ASC, created_at ASC, id ASC"
	}
	return " ORDER BY created_at DESC, id ASC"
}

func scanRecord(kind models.Kind, c tableCodec, row rowScanner) (models.Record, error) {
	rec, dests, finish := c.scan()
	m := rec.Base()
	var createdAt, updatedAt string
	var deletedAt, syncedAt sql.NullString
	all := append([]any{&m.ID, &m.UserID, &createdAt, &updatedAt, &deletedAt, &syncedAt, &m.NeedsSync}, dests...)
	if err := row.Scan(all...); err != nil {
		return nil, err
	}
	var err error
	if m.CreatedAt, err = models.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse %s created_at: %w", kind, err)
	}
	if m.UpdatedAt, err = models.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse %s updated_at: %w", kind, err)
	}
	if m.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse %s deleted_at: %w", kind, err)
	}
	if m.SyncedAt, err = parseNullTime(syncedAt); err != nil {
		return nil, fmt.Errorf("parse %s synced_at: %w", kind, err)
	}
	if err := finish(); err != nil {
		return nil, fmt.Errorf("parse %s %s: %w", kind, m.ID, err)
	}
	return rec, nil
}

func (r *sqlRecords) queryRecords(kind models.Kind, where string, args ...any) ([]models.Record, error) {
	c, err := codecFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(selectColumns(kind, c)+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind.Table(), err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(kind, c, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Table(), err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Put upserts the record. ON CONFLICT DO UPDATE keeps the row in place,
// so children are not cascade-deleted the way INSERT OR REPLACE would.
func (r *sqlRecords) Put(rec models.Record) error {
	kind := rec.Kind()
	c, err := codecFor(kind)
	if err != nil {
		return err
	}
	m := rec.Base()
	specific, err := c.args(rec)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, m.ID, err)
	}
	args := append([]any{m.ID, m.UserID, timeArg(m.CreatedAt), timeArg(m.UpdatedAt),
		nullTimeArg(m.DeletedAt), nullTimeArg(m.SyncedAt), m.NeedsSync}, specific...)

	cols := append(append([]string{}, metaColumns...), c.columns...)
	updates := make([]string, 0, len(cols)-1)
	for _, col := range cols[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		kind.Table(), strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "))

	if _, err := r.q.Exec(query, args...); err != nil {
		return fmt.Errorf("put %s %s: %w", kind, m.ID, err)
	}
	return nil
}

// Get returns a record by id, including tombstones.
func (r *sqlRecords) Get(kind models.Kind, id string) (models.Record, error) {
	c, err := codecFor(kind)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(kind, c, r.q.QueryRow(selectColumns(kind, c)+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return rec, nil
}

// ListByParent returns the children of parentID, or a user's periodizations.
func (r *sqlRecords) ListByParent(kind models.Kind, parentID string, includeDeleted bool) ([]models.Record, error) {
	c, err := codecFor(kind)
	if err != nil {
		return nil, err
	}
	col := c.parentCol
	if col == "" {
		col = "user_id"
	}
	where := "WHERE " + col + " = ?"
	if !includeDeleted {
		where += " AND deleted_at IS NULL"
	}
	return r.queryRecords(kind, where+orderClause(kind), parentID)
}

// ListDirty returns the user's records awaiting push, oldest update first.
func (r *sqlRecords) ListDirty(kind models.Kind, userID string) ([]models.Record, error) {
	return r.queryRecords(kind, "WHERE user_id = ? AND needs_sync = 1 ORDER BY updated_at ASC, id ASC", userID)
}

// ListAll returns every record of kind.
func (r *sqlRecords) ListAll(kind models.Kind) ([]models.Record, error) {
	return r.queryRecords(kind, "ORDER BY created_at ASC, id ASC")
}

// MarkSynced clears needs_sync only if the row still carries the pushed version.
func (r *sqlRecords) MarkSynced(kind models.Kind, id string, version, syncedAt time.Time) (bool, error) {
	if !kind.IsValid() {
		return false, fmt.Errorf("unknown entity kind: %q", kind)
	}
	res, err := r.q.Exec(
		fmt.Sprintf("UPDATE %s SET needs_sync = 0, synced_at = ? WHERE id = ? AND updated_at = ?", kind.Table()),
		timeArg(syncedAt), id, timeArg(version),
	)
	if err != nil {
		return false, fmt.Errorf("mark %s %s synced: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark %s %s synced: %w", kind, id, err)
	}
	return n > 0, nil
}

// Purge deletes acknowledged tombstones synced before the cutoff whose
// subtree holds nothing live or dirty.
func (r *sqlRecords) Purge(kind models.Kind, before time.Time) (int, error) {
	if !kind.IsValid() {
		return 0, fmt.Errorf("unknown entity kind: %q", kind)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE deleted_at IS NOT NULL AND needs_sync = 0
		AND synced_at IS NOT NULL AND synced_at < ?`, kind.Table())
	if pinned := pinnedBelow(kind, kind.Table()); pinned != "" {
		query += " AND NOT " + pinned
	}
	res, err := r.q.Exec(query, timeArg(before))
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", kind.Table(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", kind.Table(), err)
	}
	return int(n), nil
}

// pinnedBelow builds an EXISTS predicate matching rows of kind that have any
// live or dirty descendant at any depth. Sets have no children and yield "".
func pinnedBelow(kind models.Kind, outer string) string {
	child := kind.Child()
	if child == "" {
		return ""
	}
	alias := "d_" + child.Table()
	cond := fmt.Sprintf("%s.needs_sync = 1 OR %s.deleted_at IS NULL", alias, alias)
	if sub := pinnedBelow(child, alias); sub != "" {
		cond += " OR " + sub
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.id AND (%s))",
		child.Table(), alias, alias, codecs[child].parentCol, outer, cond)
}

// GetState reads a sync_state value; a missing key yields "".
func (r *sqlRecords) GetState(key string) (string, error) {
	var value string
	err := r.q.QueryRow("SELECT value FROM sync_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sync state %s: %w", key, err)
	}
	return value, nil
}

// SetState upserts a sync_state value.
func (r *sqlRecords) SetState(key, value string) error {
	_, err := r.q.Exec(
		"INSERT INTO sync_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set sync state %s: %w", key, err)
	}
	return nil
}

func timeArg(t time.Time) string {
	return models.FormatTime(t)
}

func nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return models.FormatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := models.ParseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func jsonArg[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func parseJSONColumn[T any](s sql.NullString, dst *[]T) error {
	if !s.Valid || s.String == "" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
