// Package sqlite implements the SQLite task store.
package sqlite

// dbFileName is the database file created inside Config.DataDir.
const dbFileName = "taski.db"

// Schema DDL. AUTOINCREMENT keeps the high-water mark in sqlite_sequence so
// IDs of deleted tasks are never handed out again.
const (
	createTasks = `CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    completed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`

	idxTasksCompleted = `CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);`
)

// schemaDDL lists all statements executed on Attach, in order.
var schemaDDL = []string{
	createTasks,
	idxTasksCompleted,
}
