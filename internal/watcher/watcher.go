// Package watcher reloads the configuration when its file changes.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func(ctx context.Context) error
	debounce time.Duration
	log      logrus.FieldLogger
}

// New creates a file watcher that calls onChange after the file settles
func New(path string, onChange func(ctx context.Context) error, log logrus.FieldLogger) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		log:      log.WithField("component", "watcher"),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is cancelled or the watcher fails.
// onChange errors are logged; the watch continues.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory so replaced files (editors, atomic renames) are seen
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.WithField("path", w.path).Info("watching config for changes")

	var (
		mu    sync.Mutex
		timer *time.Timer
		wg    sync.WaitGroup
	)
	defer wg.Wait()

	fire := func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		w.log.WithField("path", w.path).Info("config changed, reloading")
		if err := w.onChange(ctx); err != nil {
			w.log.WithError(err).Error("reload failed, keeping previous config")
		}
	}

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			mu.Lock()
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			wg.Add(1)
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")

		case <-ctx.Done():
			mu.Lock()
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			mu.Unlock()
			return ctx.Err()
		}
	}
}
