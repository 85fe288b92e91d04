package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sideo/internal/ordering"
	"sideo/internal/retention"
	"sideo/internal/storage"
)

type countingStore struct {
	*storage.Store
	mu      sync.Mutex
	updates int
}

func (c *countingStore) Update(ctx context.Context, t storage.Task) error {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.Store.Update(ctx, t)
}

func (c *countingStore) resetUpdates() {
	c.mu.Lock()
	c.updates = 0
	c.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	repo  *Repository
	store *countingStore
	clock *clock
	muts  []Mutation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "todo.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		store: &countingStore{Store: s},
		clock: &clock{now: time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)},
	}
	f.repo = New(f.store,
		WithClock(f.clock.Now),
		WithHook(func(_ context.Context, m Mutation) { f.muts = append(f.muts, m) }),
	)
	return f
}

func (f *fixture) add(t *testing.T, titles ...string) []int64 {
	t.Helper()
	var out []int64
	for _, title := range titles {
		task, err := f.repo.AddTask(context.Background(), title, false)
		if err != nil {
			t.Fatalf("add %q: %v", title, err)
		}
		out = append(out, task.ID)
		f.clock.Advance(time.Second)
	}
	return out
}

func (f *fixture) get(t *testing.T, id int64) storage.Task {
	t.Helper()
	task, ok, err := f.repo.Get(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("get %d: ok=%v err=%v", id, ok, err)
	}
	return task
}

func (f *fixture) activeIDs(t *testing.T) []int64 {
	t.Helper()
	active, err := f.repo.ActiveTasks(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	return taskIDs(active)
}

// checkInvariants asserts order density over non-deleted tasks and that
// timestamps agree with their flags.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	tasks, err := f.store.NonDeleted(context.Background())
	if err != nil {
		t.Fatalf("non-deleted: %v", err)
	}
	if !ordering.Dense(items(tasks)) {
		t.Errorf("order indices not dense: %v", items(tasks))
	}
	for _, task := range tasks {
		if (task.CompletedAt != nil) != task.Completed {
			t.Errorf("task %d: completed=%v completed_at=%v", task.ID, task.Completed, task.CompletedAt)
		}
		if task.Deleted || task.DeletedAt != nil {
			t.Errorf("task %d: non-deleted row has deletion fields", task.ID)
		}
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.repo.AddTask(ctx, "  Water plants  ", true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if task.Title != "Water plants" || !task.Important || task.OrderIndex != 0 {
		t.Errorf("unexpected task %+v", task)
	}
	if !task.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("expected created_at %v, got %v", f.clock.Now(), task.CreatedAt)
	}
	if len(f.muts) != 1 || f.muts[0] != (Mutation{Op: OpAdd, ID: task.ID}) {
		t.Errorf("unexpected hook calls %+v", f.muts)
	}
}

func TestAddTaskRejectsBlankTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, title := range []string{"", "   ", "\t\n"} {
		task, err := f.repo.AddTask(ctx, title, false)
		if err != nil {
			t.Fatalf("add %q: %v", title, err)
		}
		if task.ID != 0 {
			t.Errorf("blank title %q created task %d", title, task.ID)
		}
	}
	if got := f.activeIDs(t); len(got) != 0 {
		t.Errorf("expected no tasks, got %v", got)
	}
	if len(f.muts) != 0 {
		t.Errorf("hooks fired for rejected adds: %+v", f.muts)
	}
}

func TestAddTaskAssignsNextIndex(t *testing.T) {
	f := newFixture(t)
	got := f.add(t, "a", "b", "c", "d")
	for i, id := range got {
		if idx := f.get(t, id).OrderIndex; idx != i {
			t.Errorf("task %d: expected index %d, got %d", id, i, idx)
		}
	}
	f.checkInvariants(t)
}

func TestSetCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c")

	f.clock.Advance(time.Hour)
	if err := f.repo.SetCompleted(ctx, ids[1], true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	task := f.get(t, ids[1])
	if !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Equal(f.clock.Now()) {
		t.Errorf("unexpected completed task %+v", task)
	}
	if task.State() != storage.StateCompleted {
		t.Errorf("expected completed state, got %s", task.State())
	}
	if got := f.activeIDs(t); !equalIDs(got, []int64{ids[0], ids[2]}) {
		t.Errorf("active = %v", got)
	}
	f.checkInvariants(t)

	if err := f.repo.SetCompleted(ctx, ids[1], false); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	task = f.get(t, ids[1])
	if task.Completed || task.CompletedAt != nil {
		t.Errorf("expected cleared completion, got %+v", task)
	}
	// Uncompleting returns the task to its last known position.
	if got := f.activeIDs(t); !equalIDs(got, ids) {
		t.Errorf("active after uncomplete = %v, want %v", got, ids)
	}
	f.checkInvariants(t)
}

func TestMissingIDsAreNoops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "a")
	f.muts = nil

	const ghost = 999
	checks := map[string]error{
		"complete":   f.repo.SetCompleted(ctx, ghost, true),
		"important":  f.repo.SetImportant(ctx, ghost, true),
		"promote":    f.repo.PromoteImportant(ctx, ghost),
		"rename":     f.repo.Rename(ctx, ghost, "x"),
		"softDelete": f.repo.SoftDelete(ctx, ghost),
		"restore":    f.repo.Restore(ctx, ghost),
		"hardDelete": f.repo.HardDelete(ctx, ghost),
		"reorder":    f.repo.ReorderActive(ctx, []int64{ghost}),
	}
	for name, err := range checks {
		if err != nil {
			t.Errorf("%s: expected nil error, got %v", name, err)
		}
	}
	if len(f.muts) != 0 {
		t.Errorf("hooks fired for no-ops: %+v", f.muts)
	}
	f.checkInvariants(t)
}

func TestUnchangedStateWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b")
	if err := f.repo.SetCompleted(ctx, ids[1], true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.repo.SetImportant(ctx, ids[1], true); err != nil {
		t.Fatalf("important: %v", err)
	}
	stamped := f.get(t, ids[1]).CompletedAt
	f.store.resetUpdates()
	f.muts = nil
	f.clock.Advance(time.Hour)

	tests := []struct {
		name string
		call func() error
	}{
		{"uncomplete active", func() error { return f.repo.SetCompleted(ctx, ids[0], false) }},
		{"complete completed", func() error { return f.repo.SetCompleted(ctx, ids[1], true) }},
		{"unimportant plain", func() error { return f.repo.SetImportant(ctx, ids[0], false) }},
		{"important important", func() error { return f.repo.SetImportant(ctx, ids[1], true) }},
	}
	for _, tt := range tests {
		if err := tt.call(); err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
	}
	if f.store.updates != 0 {
		t.Errorf("expected no writes, got %d", f.store.updates)
	}
	if len(f.muts) != 0 {
		t.Errorf("hooks fired for unchanged state: %+v", f.muts)
	}
	if got := f.get(t, ids[1]).CompletedAt; !got.Equal(*stamped) {
		t.Errorf("completion time restamped: %v -> %v", *stamped, *got)
	}
}

func TestSetImportantHasNoOrderingEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c")

	if err := f.repo.SetImportant(ctx, ids[2], true); err != nil {
		t.Fatalf("important: %v", err)
	}
	if !f.get(t, ids[2]).Important {
		t.Error("expected important flag")
	}
	if got := f.activeIDs(t); !equalIDs(got, ids) {
		t.Errorf("ordering changed: %v", got)
	}
}

func TestPromoteImportantMovesToTop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c", "d")

	if err := f.repo.PromoteImportant(ctx, ids[2]); err != nil {
		t.Fatalf("promote: %v", err)
	}
	want := []int64{ids[2], ids[0], ids[1], ids[3]}
	if got := f.activeIDs(t); !equalIDs(got, want) {
		t.Errorf("active = %v, want %v", got, want)
	}
	if !f.get(t, ids[2]).Important {
		t.Error("expected important flag")
	}
	f.checkInvariants(t)

	f.store.resetUpdates()
	if err := f.repo.PromoteImportant(ctx, ids[2]); err != nil {
		t.Fatalf("promote again: %v", err)
	}
	if f.store.updates != 0 {
		t.Errorf("promoting the top important task should write nothing, got %d updates", f.store.updates)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c")

	if err := f.repo.SoftDelete(ctx, ids[0]); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	task := f.get(t, ids[0])
	if task.State() != storage.StateDeleted || task.DeletedAt == nil {
		t.Errorf("unexpected deleted task %+v", task)
	}
	f.checkInvariants(t)
	if got := f.activeIDs(t); !equalIDs(got, ids[1:]) {
		t.Errorf("active = %v", got)
	}

	trash, err := f.repo.RecentlyDeleted(ctx)
	if err != nil {
		t.Fatalf("trash: %v", err)
	}
	if len(trash) != 1 || trash[0].ID != ids[0] {
		t.Errorf("unexpected trash %+v", trash)
	}

	if err := f.repo.Restore(ctx, ids[0]); err != nil {
		t.Fatalf("restore: %v", err)
	}
	task = f.get(t, ids[0])
	if task.Deleted || task.DeletedAt != nil {
		t.Errorf("expected restored task, got %+v", task)
	}
	want := []int64{ids[1], ids[2], ids[0]}
	if got := f.activeIDs(t); !equalIDs(got, want) {
		t.Errorf("active after restore = %v, want %v", got, want)
	}
	f.checkInvariants(t)
}

func TestRestorePreservesCompletedState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.add(t, "done then trashed")[0]

	f.repo.SetCompleted(ctx, id, true)
	f.repo.SoftDelete(ctx, id)
	if err := f.repo.Restore(ctx, id); err != nil {
		t.Fatalf("restore: %v", err)
	}
	task := f.get(t, id)
	if task.Deleted || !task.Completed || task.State() != storage.StateCompleted {
		t.Errorf("expected completed task after restore, got %+v", task)
	}
	if task.CompletedAt == nil {
		t.Error("expected completed_at to survive restore")
	}
	f.checkInvariants(t)
}

func TestHardDeleteOnlyFromTrash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b")

	if err := f.repo.HardDelete(ctx, ids[0]); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	f.get(t, ids[0])

	f.repo.SoftDelete(ctx, ids[0])
	if err := f.repo.HardDelete(ctx, ids[0]); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if _, ok, _ := f.repo.Get(ctx, ids[0]); ok {
		t.Error("expected task to be gone")
	}
	f.checkInvariants(t)
}

func TestRecentlyDeletedWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "expired", "kept")

	f.repo.SoftDelete(ctx, ids[0])
	f.clock.Advance(time.Hour)
	f.repo.SoftDelete(ctx, ids[1])

	// Exactly seven days after the first delete: both are still visible.
	f.clock.Advance(6*retention.Day + 23*time.Hour)
	trash, _ := f.repo.RecentlyDeleted(ctx)
	if len(trash) != 2 {
		t.Fatalf("expected both tasks at 6d23h, got %d", len(trash))
	}

	// Seven days and a second: the first delete has expired, the second
	// is 6d23h old and stays.
	f.clock.Advance(time.Second)
	trash, _ = f.repo.RecentlyDeleted(ctx)
	if len(trash) != 1 || trash[0].ID != ids[1] {
		t.Errorf("expected only %d in trash, got %+v", ids[1], trash)
	}
}

func TestReorderActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c", "d")

	want := []int64{ids[3], ids[1], ids[0], ids[2]}
	if err := f.repo.ReorderActive(ctx, want); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := f.activeIDs(t); !equalIDs(got, want) {
		t.Errorf("active = %v, want %v", got, want)
	}
	for k, id := range want {
		if idx := f.get(t, id).OrderIndex; idx != k {
			t.Errorf("task %d: expected index %d, got %d", id, k, idx)
		}
	}
	f.checkInvariants(t)
}

func TestReorderActiveUnchangedWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c")
	f.muts = nil
	f.store.resetUpdates()

	if err := f.repo.ReorderActive(ctx, ids); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if f.store.updates != 0 {
		t.Errorf("expected zero writes, got %d", f.store.updates)
	}
	if len(f.muts) != 0 {
		t.Errorf("expected no hook for a no-op reorder, got %+v", f.muts)
	}
}

func TestReorderActiveSkipsMissingIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c")
	f.repo.SoftDelete(ctx, ids[1])

	if err := f.repo.ReorderActive(ctx, []int64{ids[2], 12345, ids[1], ids[0]}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := f.activeIDs(t); !equalIDs(got, []int64{ids[2], ids[0]}) {
		t.Errorf("active = %v", got)
	}
	f.checkInvariants(t)
}

func TestReorderActiveWithCompletedTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c", "d")
	f.repo.SetCompleted(ctx, ids[1], true)

	want := []int64{ids[3], ids[0], ids[2]}
	if err := f.repo.ReorderActive(ctx, want); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := f.activeIDs(t); !equalIDs(got, want) {
		t.Errorf("active = %v, want %v", got, want)
	}
	f.checkInvariants(t)
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c")

	if err := f.repo.Move(ctx, 2, 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := f.activeIDs(t); !equalIDs(got, []int64{ids[0], ids[2], ids[1]}) {
		t.Errorf("active = %v", got)
	}
	if err := f.repo.Move(ctx, 0, 5); err != nil {
		t.Fatalf("out of range move: %v", err)
	}
	if got := f.activeIDs(t); !equalIDs(got, []int64{ids[0], ids[2], ids[1]}) {
		t.Errorf("out of range move changed order: %v", got)
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.add(t, "old")[0]

	if err := f.repo.Rename(ctx, id, " new "); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := f.get(t, id).Title; got != "new" {
		t.Errorf("expected title new, got %q", got)
	}
	f.repo.Rename(ctx, id, "  ")
	if got := f.get(t, id).Title; got != "new" {
		t.Errorf("blank rename changed title to %q", got)
	}
}

func TestSections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "c", "b", "a")

	f.repo.SetCompleted(ctx, ids[0], true)
	f.clock.Advance(10 * retention.Day)
	f.repo.SetCompleted(ctx, ids[1], true)
	f.clock.Advance(10*retention.Day - time.Hour)
	f.repo.SetCompleted(ctx, ids[2], true)
	f.clock.Advance(time.Hour)

	sections, err := f.repo.Sections(ctx)
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %+v", sections)
	}
	if sections[0].Title != retention.SectionRecentlyCompleted || !equalIDs(taskIDs(sections[0].Tasks), []int64{ids[2]}) {
		t.Errorf("unexpected recent section %+v", sections[0])
	}
	if sections[1].Title != retention.SectionLastWeek || !equalIDs(taskIDs(sections[1].Tasks), []int64{ids[1], ids[0]}) {
		t.Errorf("unexpected last week section %+v", sections[1])
	}
}

func TestInvariantsAcrossLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.add(t, "a", "b", "c", "d", "e")

	steps := []func() error{
		func() error { return f.repo.SetCompleted(ctx, ids[1], true) },
		func() error { return f.repo.SoftDelete(ctx, ids[3]) },
		func() error { return f.repo.PromoteImportant(ctx, ids[4]) },
		func() error { return f.repo.SoftDelete(ctx, ids[1]) },
		func() error { _, err := f.repo.AddTask(ctx, "f", false); return err },
		func() error { return f.repo.Restore(ctx, ids[1]) },
		func() error { return f.repo.SetCompleted(ctx, ids[1], false) },
		func() error { return f.repo.Move(ctx, 0, 3) },
		func() error { return f.repo.HardDelete(ctx, ids[3]) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		f.checkInvariants(t)
	}
}
