package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// HotplugWatcher calls a function whenever a tty device node appears.
type HotplugWatcher struct {
	dir    string
	notify func()
	logger Logger
}

// NewHotplugWatcher watches dir (normally /dev) and calls notify on every
// new tty* entry.
func NewHotplugWatcher(dir string, notify func(), logger Logger) *HotplugWatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &HotplugWatcher{dir: dir, notify: notify, logger: logger}
}

// Run watches until ctx is cancelled. It returns an error only if the watch
// cannot be set up.
func (w *HotplugWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Debug("hotplug watcher started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isTTYCreate(event) {
				continue
			}
			w.logger.Debug("serial device appeared", "path", event.Name)
			w.notify()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func isTTYCreate(event fsnotify.Event) bool {
	return event.Op.Has(fsnotify.Create) && strings.HasPrefix(filepath.Base(event.Name), "tty")
}
