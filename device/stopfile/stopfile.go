// Package stopfile raises a stop token when a file appears, so an external
// scheduler or UI can stop a running bot by touching a path.
package stopfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agentstation/operation"
)

// Watcher watches one path and requests a stop when it is created or written.
type Watcher struct {
	path    string
	token   *operation.StopToken
	logger  operation.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// New creates a watcher for path raising token. A nil logger discards output.
func New(path string, token *operation.StopToken, logger operation.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("stop file path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = operation.NopLogger()
	}
	return &Watcher{
		path:    abs,
		token:   token,
		logger:  logger,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. A stop file that already exists raises the token
// immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// The directory is watched since the file usually does not exist yet.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	if _, err := os.Stat(w.path); err == nil {
		w.raise(ctx, "present at start")
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat stop file: %w", err)
	}

	w.logger.Info(ctx, "stop file watcher started", "path", w.path)
	go w.loop(ctx)
	return nil
}

// Close stops watching. The token is left as it is.
func (w *Watcher) Close() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.done
	}
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.raise(ctx, event.Op.String())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(ctx, "stop file watcher error", "error", err)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) raise(ctx context.Context, reason string) {
	if w.token.Requested() {
		return
	}
	w.logger.Info(ctx, "stop requested", "path", w.path, "reason", reason)
	w.token.Request()
}
