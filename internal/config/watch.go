package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Editors often write a file in several steps; events closer than this are
// folded into one reload.
const watchDelay = 250 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes the result
// to reload, until ctx is done. Files that fail to load are logged and
// skipped. reload runs on the watcher goroutine.
func Watch(ctx context.Context, path string, reload func(Config)) error {
	return watch(ctx, path, watchDelay, reload)
}

func watch(ctx context.Context, path string, delay time.Duration, reload func(Config)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Debug("watching config file", "path", path)

	go func() {
		defer watcher.Close()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(delay)
				} else {
					timer.Reset(delay)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := LoadFile(path)
				if err != nil {
					log.Warn("ignoring config change", "path", path, "err", err)
					continue
				}
				log.Info("config reloaded", "path", path)
				reload(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("config watcher error", "path", path, "err", err)
			}
		}
	}()
	return nil
}
