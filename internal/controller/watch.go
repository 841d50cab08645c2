package controller

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long Watch waits for changes to settle before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads the store whenever a dataset file in the config directory
// changes, until ctx is done. Bursts of changes within debounce cause a
// single reload.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return errors.Wrapf(err, "watch %s", s.dir)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ConfigExt || event.Op == fsnotify.Chmod {
				continue
			}
			level.Debug(s.logger).Log("msg", "config changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			level.Warn(s.logger).Log("msg", "config watcher error", "err", err)

		case <-timer.C:
			if _, err := s.Load(); err != nil {
				level.Error(s.logger).Log("msg", "config reload failed", "err", err)
			}
		}
	}
}
