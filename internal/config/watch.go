package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle coalesces the burst of filesystem events an editor save emits.
const watchSettle = 200 * time.Millisecond

// Watch reloads cfg in place whenever the file at path changes, then calls
// onReload (which may be nil). It blocks until ctx is cancelled. The parent
// directory is watched rather than the file itself because most editors
// replace the file on save.
func Watch(ctx context.Context, path string, cfg *Config, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var settle *time.Timer
	reload := func() {
		if err := cfg.Reload(path); err != nil {
			slog.Warn("config reload failed", "path", path, "error", err)
			return
		}
		slog.Info("config reloaded", "path", path)
		if onReload != nil {
			onReload()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(watchSettle, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}
