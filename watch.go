package anvil

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchParameters reloads the parameters file each time it is written and
// hands the result to apply. The directory is watched rather than the file
// so that editors replacing the file are followed. Files that fail to load
// are logged and skipped. WatchParameters blocks until ctx is done.
//
// apply runs on the watcher goroutine: it must not call World.SetParameters
// while the world is stepping.
func WatchParameters(ctx context.Context, path string, logger *slog.Logger, apply func(Parameters)) error {
	if logger == nil {
		logger = slog.Default()
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch parameters: %w", err)
	}
	defer watcher.Close()

	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch parameters %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			params, err := LoadParameters(path)
			if err != nil {
				logger.Warn("parameters reload failed", slog.String("path", path), slog.Any("error", err))
				continue
			}
			logger.Info("parameters reloaded", slog.String("path", path))
			apply(params)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("parameters watcher", slog.Any("error", err))
		}
	}
}
