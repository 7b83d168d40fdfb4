// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines the four entity tables, the reserved sync_queue and sync_state.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS periodizations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		synced_at TEXT,
		needs_sync INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		periodization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL DEFAULT 'planned',
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		synced_at TEXT,
		needs_sync INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (periodization_id) REFERENCES periodizations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		muscle_group TEXT,
		equipment TEXT,
		notes TEXT,
		order_index INTEGER NOT NULL DEFAULT 0,
		conjugated_group TEXT,
		conjugated_order INTEGER,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		synced_at TEXT,
		needs_sync INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		exercise_id TEXT NOT NULL,
		order_index INTEGER NOT NULL DEFAULT 0,
		repetitions INTEGER NOT NULL DEFAULT 0,
		weight REAL NOT NULL DEFAULT 0,
		technique TEXT,
		set_type TEXT,
		rest_time INTEGER,
		rir INTEGER,
		rpe REAL,
		notes TEXT,
		completed_at TEXT,
		drop_sets TEXT,
		rest_pause TEXT,
		cluster TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		synced_at TEXT,
		needs_sync INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (exercise_id) REFERENCES exercises(id) ON DELETE CASCADE
	);

	-- Reserved for an operation log; change tracking uses the needs_sync columns.
	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		data TEXT,
		created_at TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periodizations_user ON periodizations(user_id);
	CREATE INDEX IF NOT EXISTS idx_periodizations_needs_sync ON periodizations(needs_sync);
	CREATE INDEX IF NOT EXISTS idx_periodizations_deleted ON periodizations(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_needs_sync ON sessions(needs_sync);
	CREATE INDEX IF NOT EXISTS idx_sessions_deleted ON sessions(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_periodization ON sessions(periodization_id);
	CREATE INDEX IF NOT EXISTS idx_exercises_user ON exercises(user_id);
	CREATE INDEX IF NOT EXISTS idx_exercises_needs_sync ON exercises(needs_sync);
	CREATE INDEX IF NOT EXISTS idx_exercises_deleted ON exercises(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_exercises_session ON exercises(session_id, order_index);
	CREATE INDEX IF NOT EXISTS idx_sets_user ON sets(user_id);
	CREATE INDEX IF NOT EXISTS idx_sets_needs_sync ON sets(needs_sync);
	CREATE INDEX IF NOT EXISTS idx_sets_deleted ON sets(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_sets_exercise ON sets(exercise_id, order_index);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_user ON sync_queue(user_id);
	`

	_, err := d.db.Exec(schema)
	return err
}
