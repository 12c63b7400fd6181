package auth

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchACLFile reloads authz whenever its backing file changes, logging and
// keeping the previous in-memory tables if the new contents are invalid.
// It runs until ctx is cancelled or the watcher fails to start.
func WatchACLFile(ctx context.Context, authz *FileAuthorizer, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := authz.Reload(); err != nil {
					logger.Error("acl file reload failed, keeping previous rules", "path", path, "error", err)
					continue
				}
				logger.Info("acl file reloaded", "path", path)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("acl file watcher error", "path", path, "error", werr)
			}
		}
	}()

	return nil
}
