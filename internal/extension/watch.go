package extension

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ModuleExt is the file extension of native plugin modules.
const ModuleExt = ".so"

// Watcher reports plugin modules that appear or change in a directory.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	queue   func(path string)
	logger  *slog.Logger
}

// NewWatcher starts watching dir. queue is called with the absolute module path
// from the Run goroutine for every created or rewritten module.
func NewWatcher(dir string, queue func(path string), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{dir: abs, watcher: fw, queue: queue, logger: logger}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run forwards events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !IsModule(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Write == fsnotify.Write {
				w.logger.Debug("plugin module changed", "path", event.Name, "op", event.Op.String())
				w.queue(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("plugin watcher error", "dir", w.dir, "error", err)
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// IsModule reports whether path names a native plugin module.
func IsModule(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ModuleExt)
}
