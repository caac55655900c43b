// This file implements the types.Store operations on the tasks table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/taski/pkg/types"
)

const selectTaskColumns = "SELECT id, title, description, completed, created_at FROM tasks"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateTask converts a tasks row to a *types.Task.
func hydrateTask(row rowScanner) (*types.Task, error) {
	var (
		task      types.Task
		completed int
		createdAt string
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &completed, &createdAt); err != nil {
		return nil, err
	}
	task.Completed = completed != 0
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	task.CreatedAt = t
	return &task, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// List returns all tasks ordered by ID, which is insertion order.
func (b *Backend) List(ctx context.Context) ([]*types.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectTaskColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*types.Task{}
	for rows.Next() {
		task, err := hydrateTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// Get retrieves a task by ID.
func (b *Backend) Get(ctx context.Context, id int64) (*types.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	return getTask(ctx, db, id)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryRower, id int64) (*types.Task, error) {
	task, err := hydrateTask(q.QueryRowContext(ctx, selectTaskColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return task, nil
}

// Create inserts a task. The client-supplied ID is kept only when it is
// above the sqlite_sequence high-water mark.
func (b *Backend) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task == nil {
		return nil, types.ErrInvalidData
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	stored := task.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = b.now()
	}
	stored.CreatedAt = stored.CreatedAt.UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var highWater int64
	err = tx.QueryRowContext(ctx, "SELECT seq FROM sqlite_sequence WHERE name = 'tasks'").Scan(&highWater)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading id sequence: %w", err)
	}

	id, err := types.AssignID(highWater, stored.ID)
	if err != nil {
		return nil, err
	}
	stored.ID = id

	_, err = tx.ExecContext(ctx,
		"INSERT INTO tasks (id, title, description, completed, created_at) VALUES (?, ?, ?, ?, ?)",
		stored.ID, stored.Title, stored.Description, boolToInt(stored.Completed),
		stored.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing task: %w", err)
	}
	return stored, nil
}

// Update applies the patch inside a transaction and returns the new row.
func (b *Backend) Update(ctx context.Context, id int64, patch types.Patch) (*types.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*patch.Completed))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("updating task %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("updating task %d: %w", id, err)
		}
		if n == 0 {
			return nil, types.ErrNotFound
		}
	}

	task, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing task %d: %w", id, err)
	}
	return task, nil
}

// Delete removes a task by ID.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteCompleted removes every completed task.
func (b *Backend) DeleteCompleted(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE completed = 1")
	if err != nil {
		return 0, fmt.Errorf("deleting completed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting completed tasks: %w", err)
	}
	return int(n), nil
}
