// Package watcher reloads a single file when it changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce groups the burst of events an editor save produces
const DefaultDebounce = 200 * time.Millisecond

// ChangeHandler is called with the watched path after it settled
type ChangeHandler func(path string)

// FileWatcher watches one file. The parent directory is watched so that
// editors replacing the file by rename are seen.
type FileWatcher struct {
	path     string
	delay    time.Duration
	onChange ChangeHandler
	logger   *zap.Logger
}

// New creates a watcher for path
func New(path string, delay time.Duration, onChange ChangeHandler, logger *zap.Logger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &FileWatcher{
		path:     filepath.Clean(path),
		delay:    delay,
		onChange: onChange,
		logger:   logger.Named("watcher"),
	}
}

// Run watches until ctx is done
func (w *FileWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("Watching file", zap.String("path", w.path))

	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.logger.Debug("File changed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
				timer.Reset(w.delay)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			w.onChange(w.path)
		}
	}
}
