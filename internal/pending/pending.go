// Package pending implements "delete now, undo for a few seconds": a
// permanent delete is scheduled behind a timer and can be cancelled until it
// fires. Pending intents live only in memory; if the process exits first the
// task simply stays in the trash.
package pending

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

// DefaultDelay is the undo window.
const DefaultDelay = 3 * time.Second

// Deleter performs the permanent delete when a timer fires.
type Deleter interface {
	HardDelete(ctx context.Context, id int64) error
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

type Debouncer struct {
	deleter Deleter
	delay   time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	entries map[int64]entry
	gen     uint64
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Debouncer)

func WithLogger(l *log.Logger) Option {
	return func(d *Debouncer) { d.logger = l }
}

func New(deleter Deleter, delay time.Duration, opts ...Option) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	d := &Debouncer{
		deleter: deleter,
		delay:   delay,
		logger:  log.New(io.Discard, "", 0),
		entries: make(map[int64]entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Delay is the undo window applied to every scheduled delete.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Schedule arranges for id to be permanently deleted after the delay. An
// existing timer for id is replaced, not stacked.
func (d *Debouncer) Schedule(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if e, ok := d.entries[id]; ok {
		e.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.entries[id] = entry{
		gen:   gen,
		timer: time.AfterFunc(d.delay, func() { d.fire(id, gen) }),
	}
}

// Cancel aborts a pending delete. It reports whether a delete was prevented;
// false means nothing was pending or the delete already started.
func (d *Debouncer) Cancel(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.entries, id)
	return true
}

// Pending reports whether a delete is scheduled for id.
func (d *Debouncer) Pending(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[id]
	return ok
}

func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// fire runs on the timer goroutine. The entry is claimed under the lock, so
// after this point Cancel reports false and a stale timer (replaced or
// cancelled after it started) does nothing.
func (d *Debouncer) fire(id int64, gen uint64) {
	d.mu.Lock()
	e, ok := d.entries[id]
	if !ok || e.gen != gen || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.entries, id)
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()

	if err := d.deleter.HardDelete(context.Background(), id); err != nil {
		d.logger.Printf("permanent delete of task %d failed: %v", id, err)
		return
	}
	d.logger.Printf("permanently deleted task %d", id)
}

// Close drops every pending delete and waits for deletes already running.
// The affected tasks remain soft-deleted.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for id, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
