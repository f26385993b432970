package missionfile

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nova-hud/nova/pkg/models"
)

// DefaultDebounce is how long Watch waits for more changes before reloading.
const DefaultDebounce = 300 * time.Millisecond

// ApplyFunc receives the full set of missions after every reload.
type ApplyFunc func(ctx context.Context, missions []*models.Mission) error

// Watch loads the missions below root, hands them to apply and reloads them
// whenever a mission file changes. It blocks until ctx is done. A reload that
// fails keeps the previous set and is logged.
func Watch(ctx context.Context, root string, logger *slog.Logger, apply ApplyFunc) error {
	return WatchWithDebounce(ctx, root, DefaultDebounce, logger, apply)
}

func WatchWithDebounce(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, apply ApplyFunc) error {
	logger = logger.With("module", "missionfile", "root", root)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, root); err != nil {
		return err
	}

	reload := func() {
		missions, err := LoadDir(root)
		if err != nil {
			logger.WarnContext(ctx, "Failed to reload missions", "error", err)

			return
		}

		if err := apply(ctx, missions); err != nil {
			logger.WarnContext(ctx, "Failed to apply missions", "error", err)

			return
		}

		logger.InfoContext(ctx, "Missions loaded", "count", len(missions))
	}

	reload()

	timer := time.NewTimer(debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						logger.WarnContext(ctx, "Failed to watch directory", "path", event.Name, "error", err)
					}
				}
			}

			if relevant(root, event) {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorContext(ctx, "Watcher error", "error", err)

		case <-timer.C:
			reload()
		}
	}
}

func relevant(root string, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false
	}

	return Matches(rel)
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}

			return err
		}

		if !d.IsDir() {
			return nil
		}

		if name := d.Name(); path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}
