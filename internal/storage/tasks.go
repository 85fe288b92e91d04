package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const taskColumns = `id, title, is_important, is_completed, completed_at, is_deleted, deleted_at, created_at, order_index`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (Task, error) {
	var t Task
	var important, completed, deleted int
	var completedAt, deletedAt sql.NullInt64
	var createdAt int64
	if err := sc.Scan(&t.ID, &t.Title, &important, &completed, &completedAt, &deleted, &deletedAt, &createdAt, &t.OrderIndex); err != nil {
		return Task{}, err
	}
	t.Important = important == 1
	t.Completed = completed == 1
	t.CompletedAt = timePtr(completedAt)
	t.Deleted = deleted == 1
	t.DeletedAt = timePtr(deletedAt)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create inserts a task at the given order index and returns its id.
func (s *Store) Create(ctx context.Context, title string, important bool, createdAt time.Time, orderIndex int) (int64, error) {
	id, err := insertTask(ctx, s.db, title, important, createdAt, orderIndex)
	if err != nil {
		return 0, err
	}
	s.publish(Change{Op: OpCreate, ID: id})
	return id, nil
}

// CreateAtEnd appends a task after every non-deleted task. The next order
// index is read and consumed in one transaction.
func (s *Store) CreateAtEnd(ctx context.Context, title string, important bool, createdAt time.Time) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	next, err := nextOrderIndex(ctx, tx)
	if err != nil {
		return Task{}, err
	}
	id, err := insertTask(ctx, tx, title, important, createdAt, next)
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, err
	}
	s.publish(Change{Op: OpCreate, ID: id})
	return Task{
		ID:         id,
		Title:      title,
		Important:  important,
		CreatedAt:  fromMillis(toMillis(createdAt)),
		OrderIndex: next,
	}, nil
}

func insertTask(ctx context.Context, q querier, title string, important bool, createdAt time.Time, orderIndex int) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO tasks (title, is_important, is_completed, is_deleted, created_at, order_index) VALUES (?, ?, 0, 0, ?, ?);`,
		title, boolInt(important), toMillis(createdAt), orderIndex)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?;`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// Update replaces every mutable column of the row with t.ID. The id and
// creation time are never rewritten. Unknown ids are ignored.
func (s *Store) Update(ctx context.Context, t Task) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, is_important = ?, is_completed = ?, completed_at = ?, is_deleted = ?, deleted_at = ?, order_index = ? WHERE id = ?;`,
		t.Title, boolInt(t.Important), boolInt(t.Completed), nullMillis(t.CompletedAt),
		boolInt(t.Deleted), nullMillis(t.DeletedAt), t.OrderIndex, t.ID)
	if err != nil {
		return err
	}
	s.publishIfAffected(res, Change{Op: OpUpdate, ID: t.ID})
	return nil
}

func (s *Store) SoftDelete(ctx context.Context, id int64, deletedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET is_deleted = 1, deleted_at = ? WHERE id = ?;`, toMillis(deletedAt), id)
	if err != nil {
		return err
	}
	s.publishIfAffected(res, Change{Op: OpSoftDelete, ID: id})
	return nil
}

// Restore clears the deletion fields and moves the row to the end of the
// ordering, in one transaction.
func (s *Store) Restore(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	next, err := nextOrderIndex(ctx, tx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET is_deleted = 0, deleted_at = NULL, order_index = ? WHERE id = ? AND is_deleted = 1;`, next, id)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.publishIfAffected(res, Change{Op: OpRestore, ID: id})
	return nil
}

func (s *Store) HardDelete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	s.publishIfAffected(res, Change{Op: OpHardDelete, ID: id})
	return nil
}

func (s *Store) NextOrderIndex(ctx context.Context) (int, error) {
	return nextOrderIndex(ctx, s.db)
}

func nextOrderIndex(ctx context.Context, q querier) (int, error) {
	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(order_index), -1) + 1 FROM tasks WHERE is_deleted = 0;`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return next, nil
}

func (s *Store) ActiveTasks(ctx context.Context) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE is_completed = 0 AND is_deleted = 0
ORDER BY order_index ASC, created_at ASC, id ASC;`)
}

// CompletedTasks returns the most recently completed tasks, newest first.
// Rows without completed_at fall back to created_at.
func (s *Store) CompletedTasks(ctx context.Context, limit int) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE is_completed = 1 AND is_deleted = 0
ORDER BY COALESCE(completed_at, created_at) DESC, id DESC
LIMIT ?;`, limit)
}

// DeletedSince returns soft-deleted tasks whose deletion time is at or after
// since, newest first.
func (s *Store) DeletedSince(ctx context.Context, since time.Time) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE is_deleted = 1 AND deleted_at >= ?
ORDER BY deleted_at DESC, id DESC;`, toMillis(since))
}

// NonDeleted returns active and completed tasks in ordering order.
func (s *Store) NonDeleted(ctx context.Context) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE is_deleted = 0
ORDER BY order_index ASC, created_at ASC, id ASC;`)
}
