// ABOUTME: Relational Remote over database/sql with the ncruces SQLite driver.
// ABOUTME: Self-hosted sync target with enforced foreign keys, also used as a second device in tests.
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/periodize/internal/models"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLRemote is a relational Remote backed by a SQLite file.
type SQLRemote struct {
	db   *sql.DB
	path string
}

// Compile-time check that SQLRemote implements Remote.
var _ Remote = (*SQLRemote)(nil)

// OpenSQL opens or creates the remote database at path.
func OpenSQL(path string) (*SQLRemote, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create remote directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open remote database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping remote database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	r := &SQLRemote{db: db, path: path}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize remote schema: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *SQLRemote) Close() error {
	return r.db.Close()
}

func (r *SQLRemote) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS periodizations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		server_seq INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		description TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		server_seq INTEGER NOT NULL DEFAULT 0,
		periodization_id TEXT NOT NULL REFERENCES periodizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL,
		notes TEXT
	);
	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		server_seq INTEGER NOT NULL DEFAULT 0,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		muscle_group TEXT,
		equipment TEXT,
		notes TEXT,
		order_index INTEGER NOT NULL,
		conjugated_group TEXT,
		conjugated_order INTEGER,
		completed_at TEXT
	);
	CREATE TABLE IF NOT EXISTS sets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		server_seq INTEGER NOT NULL DEFAULT 0,
		exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
		order_index INTEGER NOT NULL,
		repetitions INTEGER NOT NULL,
		weight REAL NOT NULL,
		technique TEXT,
		set_type TEXT,
		rest_time INTEGER,
		rir INTEGER,
		rpe REAL,
		notes TEXT,
		completed_at TEXT,
		drop_sets TEXT,
		rest_pause TEXT,
		cluster TEXT
	);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return err
	}
	for _, kind := range models.Kinds {
		if err := r.ensureSeqColumn(kind.Table()); err != nil {
			return fmt.Errorf("add %s to %s: %w", SeqColumn, kind.Table(), err)
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_remote_%s_seq ON %s(user_id, %s)",
			kind.Table(), kind.Table(), SeqColumn)
		if _, err := r.db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

// ensureSeqColumn upgrades databases created before writes were sequenced.
// Existing rows are numbered by rowid so every one is above the zero cursor.
func (r *SQLRemote) ensureSeqColumn(table string) error {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, SeqColumn).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	if _, err := r.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER NOT NULL DEFAULT 0", table, SeqColumn)); err != nil {
		return err
	}
	_, err = r.db.Exec(fmt.Sprintf("UPDATE %s SET %s = rowid", table, SeqColumn))
	return err
}

// nextSeq is the SQL expression for the next write sequence of table.
// SQLite serializes writers, so the values follow commit order.
func nextSeq(table string) string {
	return fmt.Sprintf("(SELECT COALESCE(MAX(%s), 0) + 1 FROM %s)", SeqColumn, table)
}

// Upsert inserts or overwrites the row, only ever touching the owner's row.
func (r *SQLRemote) Upsert(ctx context.Context, rec models.Record) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	kind := rec.Kind()
	row, err := ToRow(rec)
	if err != nil {
		return err
	}
	cols := Columns(kind)
	args := make([]any, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		v := row[col]
		if jsonColumns[col] && v != nil {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s.%s: %w", kind, col, err)
			}
			v = string(b)
		}
		args[i] = v
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	updates = append(updates, fmt.Sprintf("%s = excluded.%s", SeqColumn, SeqColumn))
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (%s, %s) ON CONFLICT(id) DO UPDATE SET %s WHERE %s.user_id = excluded.user_id",
		kind.Table(), strings.Join(cols, ", "), SeqColumn,
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "), nextSeq(kind.Table()),
		strings.Join(updates, ", "), kind.Table())

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return r.classify("upsert", err, rec)
	}
	return nil
}

// FetchSince returns rows written after seq, tombstones included.
func (r *SQLRemote) FetchSince(ctx context.Context, kind models.Kind, userID string, seq int64) ([]Change, error) {
	return r.query(ctx, kind,
		fmt.Sprintf("WHERE user_id = ? AND %s > ? ORDER BY %s ASC, id ASC", SeqColumn, SeqColumn),
		userID, seq)
}

// ListLive returns the user's live rows.
func (r *SQLRemote) ListLive(ctx context.Context, kind models.Kind, userID string) ([]models.Record, error) {
	order := strings.Join(liveOrder(kind), " ASC, ") + " ASC"
	changes, err := r.query(ctx, kind, "WHERE user_id = ? AND deleted_at IS NULL ORDER BY "+order, userID)
	if err != nil {
		return nil, err
	}
	return Records(changes), nil
}

func (r *SQLRemote) query(ctx context.Context, kind models.Kind, tail string, args ...any) ([]Change, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown entity kind: %q", kind)
	}
	cols := append(Columns(kind), SeqColumn)
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(cols, ", "), kind.Table(), tail), args...)
	if err != nil {
		return nil, r.classify("query "+kind.Table(), err, nil)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		vals := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range vals {
			dests[i] = &vals[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Table(), err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = vals[i]
		}
		seq, err := rowSeq(row)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Table(), err)
		}
		delete(row, SeqColumn)
		rec, err := FromRow(kind, row)
		if err != nil {
			return nil, err
		}
		out = append(out, Change{Record: rec, Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, r.classify("query "+kind.Table(), err, nil)
	}
	return out, nil
}

// SoftDelete stamps deleted_at and updated_at on the user's row.
func (r *SQLRemote) SoftDelete(ctx context.Context, rec models.Record) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	m := rec.Base()
	if m.DeletedAt == nil {
		return fmt.Errorf("soft delete %s %s: record is not tombstoned", rec.Kind(), m.ID)
	}
	table := rec.Kind().Table()
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET deleted_at = ?, updated_at = ?, %s = %s WHERE id = ? AND user_id = ?",
			table, SeqColumn, nextSeq(table)),
		models.FormatTime(*m.DeletedAt), models.FormatTime(m.UpdatedAt), m.ID, m.UserID)
	if err != nil {
		return r.classify("soft delete", err, rec)
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLRemote) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (r *SQLRemote) classify(op string, err error, rec models.Record) error {
	if errors.Is(err, sqlite3.CONSTRAINT) {
		c := &ConflictError{
			Code:          "constraint",
			Message:       err.Error(),
			ParentMissing: errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY),
		}
		if rec != nil {
			c.Kind = rec.Kind()
			c.ID = rec.Base().ID
		}
		return c
	}
	return unavailable(op, err)
}
