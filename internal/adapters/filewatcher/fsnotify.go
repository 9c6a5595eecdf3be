// Package filewatcher provides file system monitoring adapters.
package filewatcher

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
)

// DefaultDebounce is how long a path must stay quiet before its event is emitted.
const DefaultDebounce = 250 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// Bursts of writes to one file (editors, copy tools) collapse into a single event.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // File extensions to watch (e.g., ".json")
	debounce   time.Duration
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(extensions []string, debounce time.Duration) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".json"}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: extensions,
		debounce:   debounce,
	}, nil
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)

		pending := make(map[string]ports.FileOperation)
		timer := time.NewTimer(w.debounce)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}
				op, ok := operation(event.Op)
				if !ok {
					continue
				}
				pending[event.Name] = merge(pending[event.Name], op, hasPending(pending, event.Name))
				timer.Reset(w.debounce)
			case <-timer.C:
				for path, op := range pending {
					select {
					case events <- ports.FileEvent{Path: path, Operation: op}:
					case <-ctx.Done():
						return
					}
				}
				pending = make(map[string]ports.FileOperation)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARN] File watcher error: %v", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func operation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return ports.FileCreated, true
	case op&fsnotify.Write == fsnotify.Write:
		return ports.FileModified, true
	case op&fsnotify.Remove == fsnotify.Remove, op&fsnotify.Rename == fsnotify.Rename:
		return ports.FileDeleted, true
	default:
		return 0, false
	}
}

// merge folds a new operation into the one already pending for a path.
// A create followed by writes is still a create; the last delete or create wins otherwise.
func merge(prev, next ports.FileOperation, hadPrev bool) ports.FileOperation {
	if hadPrev && prev == ports.FileCreated && next == ports.FileModified {
		return ports.FileCreated
	}
	return next
}

func hasPending(pending map[string]ports.FileOperation, path string) bool {
	_, ok := pending[path]
	return ok
}
