package config

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 1500 * time.Millisecond

// WatchOption configures a settings file watch.
type WatchOption func(*fileWatcher)

// WithDebounce sets how long the file must stay quiet before it is reread.
// Default is 1500ms.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *fileWatcher) {
		w.debounce = d
	}
}

// fileWatcher hands the contents of one file to onChange after the file
// settles. Rewrites that leave the bytes unchanged are not reported.
//
// The parent directory is watched rather than the file itself, so files
// replaced by rename (editors, WriteSettings) keep being observed.
type fileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(data []byte)
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	last []byte // owned by run
}

func startFileWatcher(path string, onChange func([]byte), logger *slog.Logger, opts ...WatchOption) (*fileWatcher, error) {
	w := &fileWatcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return nil, err
	}
	w.watcher = watcher

	if data, err := os.ReadFile(w.path); err == nil {
		w.last = data
	}

	w.logger.Info("Settings watcher started", "path", w.path, "debounce", w.debounce)
	go w.run()
	return w, nil
}

// stop ends the watch. onChange is never called after stop returns.
func (w *fileWatcher) stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *fileWatcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Debug("Settings watcher stopped")
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Settings file change detected", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reread()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Settings watcher error", "error", err)
		}
	}
}

func (w *fileWatcher) reread() {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		// Renamed away; the replacement arrives as a Create.
		return
	}
	if err != nil {
		w.logger.Warn("Failed to read settings file", "path", w.path, "error", err)
		return
	}
	if bytes.Equal(data, w.last) {
		w.logger.Debug("Settings file unchanged")
		return
	}
	w.last = data
	w.onChange(data)
}
