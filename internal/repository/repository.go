// Package repository is the task-level API used by the UI and CLI. It owns
// validation, timestamps and ordering maintenance on top of a Store.
//
// Operations on ids that no longer exist, and adds with blank titles, are
// silent no-ops: the UI only offers actions on tasks it can see, so a miss
// means the store moved on first. Store failures are returned.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"sideo/internal/retention"
	"sideo/internal/storage"
)

// Store is the persistence the repository needs. *storage.Store implements it.
type Store interface {
	CreateAtEnd(ctx context.Context, title string, important bool, createdAt time.Time) (storage.Task, error)
	Get(ctx context.Context, id int64) (storage.Task, error)
	Update(ctx context.Context, t storage.Task) error
	SoftDelete(ctx context.Context, id int64, deletedAt time.Time) error
	Restore(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, id int64) error
	ActiveTasks(ctx context.Context) ([]storage.Task, error)
	CompletedTasks(ctx context.Context, limit int) ([]storage.Task, error)
	DeletedSince(ctx context.Context, since time.Time) ([]storage.Task, error)
	NonDeleted(ctx context.Context) ([]storage.Task, error)
}

// Op names a repository mutation passed to hooks.
type Op string

const (
	OpAdd        Op = "add"
	OpRename     Op = "rename"
	OpComplete   Op = "complete"
	OpUncomplete Op = "uncomplete"
	OpImportant  Op = "important"
	OpSoftDelete Op = "soft_delete"
	OpRestore    Op = "restore"
	OpHardDelete Op = "hard_delete"
	OpReorder    Op = "reorder"
)

// Mutation describes a successful repository change. ID is zero for
// reorders, which touch many tasks.
type Mutation struct {
	Op Op
	ID int64
}

// Hook runs after every successful mutation, for example to refresh
// home-screen surfaces. Hooks run synchronously on the caller's goroutine
// while mutations are serialized, so they may read but must not mutate.
type Hook func(ctx context.Context, m Mutation)

type Repository struct {
	// mu serializes mutations so ordering settlement never interleaves
	// with a concurrent append.
	mu sync.Mutex

	store  Store
	now    func() time.Time
	logger *log.Logger
	hooks  []Hook
}

type Option func(*Repository)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func WithHook(h Hook) Option {
	return func(r *Repository) { r.hooks = append(r.hooks, h) }
}

func New(store Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddHook registers a hook after construction.
func (r *Repository) AddHook(h Hook) {
	r.hooks = append(r.hooks, h)
}

// Now is the repository clock.
func (r *Repository) Now() time.Time {
	return r.now()
}

func (r *Repository) notify(ctx context.Context, op Op, id int64) {
	r.logger.Printf("%s task %d", op, id)
	for _, h := range r.hooks {
		h(ctx, Mutation{Op: op, ID: id})
	}
}

// lookup fetches a task, mapping not-found to ok=false.
func (r *Repository) lookup(ctx context.Context, id int64) (storage.Task, bool, error) {
	t, err := r.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Printf("task %d not found, ignoring", id)
		return storage.Task{}, false, nil
	}
	if err != nil {
		return storage.Task{}, false, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, true, nil
}

// AddTask appends a new active task. Blank titles create nothing and return
// a zero Task.
func (r *Repository) AddTask(ctx context.Context, title string, important bool) (storage.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.Task{}, nil
	}
	t, err := r.store.CreateAtEnd(ctx, title, important, r.now())
	if err != nil {
		return storage.Task{}, fmt.Errorf("add task: %w", err)
	}
	r.notify(ctx, OpAdd, t.ID)
	return t, nil
}

func (r *Repository) Rename(ctx context.Context, id int64, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	t, ok, err := r.lookup(ctx, id)
	if err != nil || !ok || t.Title == title {
		return err
	}
	t.Title = title
	if err := r.store.Update(ctx, t); err != nil {
		return fmt.Errorf("rename task %d: %w", id, err)
	}
	r.notify(ctx, OpRename, id)
	return nil
}

// SetCompleted stamps or clears the completion time. A completed task keeps
// its slot in the ordering, so uncompleting puts it back where it was.
// Setting the state a task already has writes nothing.
func (r *Repository) SetCompleted(ctx context.Context, id int64, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok, err := r.lookup(ctx, id)
	if err != nil || !ok || t.Completed == completed {
		return err
	}
	t.Completed = completed
	op := OpUncomplete
	if completed {
		now := r.now()
		t.CompletedAt = &now
		op = OpComplete
	} else {
		t.CompletedAt = nil
	}
	if err := r.store.Update(ctx, t); err != nil {
		return fmt.Errorf("set completed %d: %w", id, err)
	}
	r.notify(ctx, op, id)
	return nil
}

// SetImportant only flips the flag; see PromoteImportant for the
// move-to-top behaviour.
func (r *Repository) SetImportant(ctx context.Context, id int64, important bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.setImportant(ctx, id, important)
	return err
}

func (r *Repository) setImportant(ctx context.Context, id int64, important bool) (storage.Task, error) {
	t, ok, err := r.lookup(ctx, id)
	if err != nil || !ok {
		return storage.Task{}, err
	}
	if t.Important == important {
		return t, nil
	}
	t.Important = important
	if err := r.store.Update(ctx, t); err != nil {
		return storage.Task{}, fmt.Errorf("set important %d: %w", id, err)
	}
	r.notify(ctx, OpImportant, id)
	return t, nil
}

// SoftDelete moves a task to the trash. The completed flag is kept so a
// restore returns the task to the state it was deleted from. The gap left
// in the ordering is closed.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok, err := r.lookup(ctx, id)
	if err != nil || !ok || t.Deleted {
		return err
	}
	if err := r.store.SoftDelete(ctx, id, r.now()); err != nil {
		return fmt.Errorf("soft delete %d: %w", id, err)
	}
	if err := r.settle(ctx); err != nil {
		return err
	}
	r.notify(ctx, OpSoftDelete, id)
	return nil
}

// Restore takes a task out of the trash and appends it to the ordering.
func (r *Repository) Restore(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok, err := r.lookup(ctx, id)
	if err != nil || !ok || !t.Deleted {
		return err
	}
	if err := r.store.Restore(ctx, id); err != nil {
		return fmt.Errorf("restore %d: %w", id, err)
	}
	r.notify(ctx, OpRestore, id)
	return nil
}

// HardDelete removes a trashed task for good. Tasks that are not in the
// trash are left alone; they have to be soft-deleted first.
func (r *Repository) HardDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok, err := r.lookup(ctx, id)
	if err != nil || !ok {
		return err
	}
	if !t.Deleted {
		r.logger.Printf("task %d is not in the trash, not deleting", id)
		return nil
	}
	if err := r.store.HardDelete(ctx, id); err != nil {
		return fmt.Errorf("hard delete %d: %w", id, err)
	}
	r.notify(ctx, OpHardDelete, id)
	return nil
}

func (r *Repository) ActiveTasks(ctx context.Context) ([]storage.Task, error) {
	return r.store.ActiveTasks(ctx)
}

// CompletedTasks returns at most retention.CompletedLimit tasks, newest first.
func (r *Repository) CompletedTasks(ctx context.Context) ([]storage.Task, error) {
	return r.store.CompletedTasks(ctx, retention.CompletedLimit)
}

// RecentlyDeleted returns the trash: tasks deleted within the trash window.
func (r *Repository) RecentlyDeleted(ctx context.Context) ([]storage.Task, error) {
	return r.store.DeletedSince(ctx, retention.TrashSince(r.now()))
}

// Sections buckets the completed tasks against the current time.
func (r *Repository) Sections(ctx context.Context) ([]retention.Section, error) {
	tasks, err := r.CompletedTasks(ctx)
	if err != nil {
		return nil, err
	}
	return retention.Sections(tasks, r.now()), nil
}

// Get returns a task by id; ok is false when it does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (storage.Task, bool, error) {
	return r.lookup(ctx, id)
}
