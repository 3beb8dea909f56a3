package syncer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches one tracked file for local edits and emits debounced change
// notifications. Editors tend to write through temp-file renames, so the
// watch is on the containing directory and events are filtered by name.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	events   chan struct{}
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher for path. debounce is how long to wait after
// the last write before emitting.
func NewWatcher(path string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		path:     absPath,
		watcher:  fsWatcher,
		events:   make(chan struct{}, 1),
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Events delivers one value per debounced burst of changes to the file.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Start runs the watch loop until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			select {
			case w.events <- struct{}{}:
			default:
				// A notification is already pending.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
