package shader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Watcher reloads shader slots when their files in a directory change.
// Loads happen on the goroutine running Run; wrap the target in a Queue
// when it must only be touched from the main thread.
type Watcher struct {
	dir    string
	slots  []string
	loader Loader
	log    *zap.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher starts watching dir. Call Run to process events and Close
// when done.
func NewWatcher(dir string, slots []string, loader Loader, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("shader watcher: watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, slots: slots, loader: loader, log: log, fsw: fsw}, nil
}

// Run handles file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			slot, ok := SlotOf(w.slots, ev.Name)
			if !ok {
				continue
			}
			w.reload(slot, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Shader watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(slot int, path string) {
	err := loadFile(path, slot, w.loader)
	switch {
	case errors.Is(err, ErrEmptyBinary):
		// Created but not written yet; the write event follows.
	case err != nil:
		w.log.Warn("Shader reload failed",
			zap.String("slot", w.slots[slot]),
			zap.String("path", path),
			zap.Error(err),
		)
	default:
		w.log.Info("Shader reloaded", zap.String("slot", w.slots[slot]), zap.String("path", path))
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Watch creates a watcher for dir and runs it until ctx is done.
func Watch(ctx context.Context, dir string, slots []string, loader Loader, log *zap.Logger) error {
	w, err := NewWatcher(dir, slots, loader, log)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

// Queue is a Loader that holds binaries until Flush hands them to the real
// target. It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	pending map[int][]byte
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[int][]byte)}
}

// LoadShaderBinary stores a copy of data, replacing any earlier binary
// queued for the same slot.
func (q *Queue) LoadShaderBinary(slot int, data []byte) error {
	q.mu.Lock()
	q.pending[slot] = slices.Clone(data)
	q.mu.Unlock()
	return nil
}

// Len returns the number of slots waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush loads every queued binary into target in slot order.
func (q *Queue) Flush(target Loader) (int, error) {
	q.mu.Lock()
	pending := q.pending
	q.pending = make(map[int][]byte)
	q.mu.Unlock()

	slots := make([]int, 0, len(pending))
	for s := range pending {
		slots = append(slots, s)
	}
	slices.Sort(slots)

	var errs error
	loaded := 0
	for _, s := range slots {
		if err := target.LoadShaderBinary(s, pending[s]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shader slot %d: %w", s, err))
			continue
		}
		loaded++
	}
	return loaded, errs
}
