package repository

import (
	"context"
	"fmt"

	"sideo/internal/ordering"
	"sideo/internal/storage"
)

// ReorderActive rewrites order indices so active tasks appear in the order of
// orderedIDs. The list is expected to hold every active task; ids that are
// unknown or not active are skipped, and active tasks left out keep their
// relative order after the supplied ones. Only tasks whose index changes are
// written.
func (r *Repository) ReorderActive(ctx context.Context, orderedIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reorderActive(ctx, orderedIDs)
}

func (r *Repository) reorderActive(ctx context.Context, orderedIDs []int64) error {
	active, err := r.store.ActiveTasks(ctx)
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	n, err := r.apply(ctx, active, ordering.Assign(items(active), orderedIDs))
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	if n > 0 {
		r.notify(ctx, OpReorder, 0)
	}
	return nil
}

// Move moves the active task at position from to position to, as the
// move-up and move-down controls do.
func (r *Repository) Move(ctx context.Context, from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.store.ActiveTasks(ctx)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if from == to || from < 0 || to < 0 || from >= len(active) || to >= len(active) {
		return nil
	}
	return r.reorderActive(ctx, ordering.Move(taskIDs(active), from, to))
}

// PromoteImportant marks a task important and, if it is active, moves it to
// the top of the list keeping everyone else in order.
func (r *Repository) PromoteImportant(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.setImportant(ctx, id, true)
	if err != nil || t.ID == 0 || t.State() != storage.StateActive {
		return err
	}
	active, err := r.store.ActiveTasks(ctx)
	if err != nil {
		return fmt.Errorf("promote %d: %w", id, err)
	}
	if len(active) == 0 || active[0].ID == id {
		return nil
	}
	return r.reorderActive(ctx, ordering.MoveToTop(taskIDs(active), id))
}

// settle closes gaps in the ordering of non-deleted tasks.
func (r *Repository) settle(ctx context.Context) error {
	tasks, err := r.store.NonDeleted(ctx)
	if err != nil {
		return fmt.Errorf("settle ordering: %w", err)
	}
	if _, err := r.apply(ctx, tasks, ordering.Compact(items(tasks))); err != nil {
		return fmt.Errorf("settle ordering: %w", err)
	}
	return nil
}

// apply writes the changed indices one row at a time. A task that vanished
// since it was read is skipped.
func (r *Repository) apply(ctx context.Context, tasks []storage.Task, changed []ordering.Item) (int, error) {
	if len(changed) == 0 {
		return 0, nil
	}
	byID := make(map[int64]storage.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	written := 0
	for _, c := range changed {
		t, ok := byID[c.ID]
		if !ok {
			continue
		}
		t.OrderIndex = c.Index
		if err := r.store.Update(ctx, t); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func items(tasks []storage.Task) []ordering.Item {
	out := make([]ordering.Item, len(tasks))
	for i, t := range tasks {
		out[i] = ordering.Item{ID: t.ID, Index: t.OrderIndex}
	}
	return out
}

func taskIDs(tasks []storage.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
