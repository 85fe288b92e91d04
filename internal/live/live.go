// Package live turns repository queries into continuous streams. Each stream
// re-runs its query whenever the store reports a change and on a coarse
// timer, so time-windowed views move on even when nothing is written.
package live

import (
	"context"
	"io"
	"log"
	"time"

	"sideo/internal/retention"
	"sideo/internal/storage"
)

// DefaultRefresh is how often streams re-evaluate without a store change.
const DefaultRefresh = time.Minute

// Source answers the queries behind each stream.
type Source interface {
	ActiveTasks(ctx context.Context) ([]storage.Task, error)
	CompletedTasks(ctx context.Context) ([]storage.Task, error)
	RecentlyDeleted(ctx context.Context) ([]storage.Task, error)
	Sections(ctx context.Context) ([]retention.Section, error)
}

// Bus delivers store change notifications. *storage.Store implements it.
type Bus interface {
	Subscribe() chan storage.Change
	Unsubscribe(ch chan storage.Change)
}

type Feed struct {
	src     Source
	bus     Bus
	refresh time.Duration
	logger  *log.Logger
}

type Option func(*Feed)

// WithRefresh sets the timer interval; zero or negative disables it.
func WithRefresh(d time.Duration) Option {
	return func(f *Feed) { f.refresh = d }
}

func WithLogger(l *log.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

func New(src Source, bus Bus, opts ...Option) *Feed {
	f := &Feed{
		src:     src,
		bus:     bus,
		refresh: DefaultRefresh,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) Active(ctx context.Context) <-chan []storage.Task {
	return watch(ctx, f, "active", f.src.ActiveTasks)
}

func (f *Feed) Completed(ctx context.Context) <-chan []storage.Task {
	return watch(ctx, f, "completed", f.src.CompletedTasks)
}

func (f *Feed) Trash(ctx context.Context) <-chan []storage.Task {
	return watch(ctx, f, "trash", f.src.RecentlyDeleted)
}

func (f *Feed) Sections(ctx context.Context) <-chan []retention.Section {
	return watch(ctx, f, "sections", f.src.Sections)
}

// watch emits the query result now and after every change or tick. The
// channel holds one value; a consumer that falls behind sees only the
// latest result. The channel is closed when ctx is done.
func watch[T any](ctx context.Context, f *Feed, name string, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	sub := f.bus.Subscribe()

	go func() {
		defer close(out)
		defer f.bus.Unsubscribe(sub)

		var tick <-chan time.Time
		if f.refresh > 0 {
			t := time.NewTicker(f.refresh)
			defer t.Stop()
			tick = t.C
		}

		emit := func() {
			v, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Printf("live %s query: %v", name, err)
				}
				return
			}
			select {
			case <-out:
			default:
			}
			out <- v
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub:
				if !ok {
					return
				}
				emit()
			case <-tick:
				emit()
			}
		}
	}()
	return out
}
