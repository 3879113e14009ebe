package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the catalog file whenever it changes and publishes the new
// snapshot. Invalid edits are logged and the previous snapshot stays active.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, log *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			c, err := LoadFile(path)
			if err != nil {
				log.Warn("catalog reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			snap := Build(c)
			Update(snap)
			log.Info("catalog reloaded", zap.String("etag", snap.ETag))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
