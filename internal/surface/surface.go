// Package surface keeps a small snapshot of the top active tasks on disk for
// home-screen style consumers (status bars, widgets, shell prompts). It is
// driven by repository hooks and never writes to the task store.
package surface

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"sideo/internal/repository"
	"sideo/internal/storage"
)

// Lister supplies the active tasks in display order.
type Lister interface {
	ActiveTasks(ctx context.Context) ([]storage.Task, error)
}

type Item struct {
	ID        int64  `toml:"id"`
	Title     string `toml:"title"`
	Important bool   `toml:"important"`
}

type Snapshot struct {
	UpdatedAt time.Time `toml:"updated_at"`
	Remaining int       `toml:"remaining"`
	Items     []Item    `toml:"items"`
}

type Writer struct {
	path   string
	limit  int
	src    Lister
	now    func() time.Time
	logger *log.Logger
}

func New(path string, limit int, src Lister, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Writer{
		path:   path,
		limit:  limit,
		src:    src,
		now:    time.Now,
		logger: logger,
	}
}

// Hook refreshes the snapshot after each repository mutation. Failures are
// logged; a stale surface is not worth failing a user action over.
func (w *Writer) Hook() repository.Hook {
	return func(ctx context.Context, m repository.Mutation) {
		if err := w.Refresh(ctx); err != nil {
			w.logger.Printf("refresh surface after %s: %v", m.Op, err)
		}
	}
}

// Refresh rewrites the snapshot file atomically.
func (w *Writer) Refresh(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	active, err := w.src.ActiveTasks(ctx)
	if err != nil {
		return err
	}
	snap := Build(active, w.limit, w.now())

	data, err := toml.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".surface-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace %s: %w", w.path, err)
	}
	return nil
}

// Build takes the first limit active tasks; Remaining counts the rest.
func Build(active []storage.Task, limit int, now time.Time) Snapshot {
	snap := Snapshot{UpdatedAt: now.UTC().Truncate(time.Second)}
	for i, t := range active {
		if limit > 0 && i >= limit {
			snap.Remaining = len(active) - limit
			break
		}
		snap.Items = append(snap.Items, Item{ID: t.ID, Title: t.Title, Important: t.Important})
	}
	return snap
}

// Read loads a snapshot written by Refresh.
func Read(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	err = toml.Unmarshal(data, &snap)
	return snap, err
}
