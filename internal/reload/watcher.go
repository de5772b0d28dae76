package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// FileWatcher reloads the index when a records file changes. It watches
// the file's directory rather than the file itself so that editors and
// build tools that replace the file by rename are still seen. Bursts of
// events within the debounce window cause a single reload.
type FileWatcher struct {
	path     string
	debounce time.Duration
	reloader Reloader
	observe  Observer
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func NewFileWatcher(path string, debounce time.Duration, r Reloader, observe Observer) *FileWatcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &FileWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		reloader: r,
		observe:  observe,
		logger:   slog.Default().With("component", "reload-watcher", "path", path),
	}
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *FileWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info("watching records file", "debounce", w.debounce)

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.schedule(ctx)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *FileWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("records file changed, reloading index")
		err := w.reloader.Reload(ctx)
		if err != nil {
			w.logger.Error("reload after file change failed", "error", err)
		}
		if w.observe != nil {
			w.observe("file", err)
		}
	})
}

func (w *FileWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
