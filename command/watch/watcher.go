package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Watcher hands files matching pattern in dir to handle once they have
// stopped changing for settle. Files present at startup are handled first.
// Names ending in doneSuffix are skipped.
type Watcher struct {
	dir     string
	pattern string
	settle  time.Duration
	handle  func(ctx context.Context, path string) error
	logger  logr.Logger
}

func NewWatcher(dir, pattern string, settle time.Duration, handle func(ctx context.Context, path string) error, logger logr.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		pattern: pattern,
		settle:  settle,
		handle:  handle,
		logger:  logger,
	}
}

func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}

	w.logger.Info("watching", "dir", w.dir, "pattern", w.pattern)

	existing, err := filepath.Glob(filepath.Join(w.dir, w.pattern))
	if err != nil {
		return err
	}
	for _, path := range existing {
		if w.matches(path) {
			w.process(ctx, path)
		}
	}

	// path -> last time it changed
	pending := map[string]time.Time{}

	ticker := time.NewTicker(max(w.settle/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.matches(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err, "file watcher error")

		case now := <-ticker.C:
			for path, changed := range pending {
				if now.Sub(changed) < w.settle {
					continue
				}
				delete(pending, path)
				w.process(ctx, path)
			}
		}
	}
}

// matches reports whether path should be handled. Files already handled
// carry doneSuffix and are never picked up again, whatever the pattern.
func (w *Watcher) matches(path string) bool {
	if strings.HasSuffix(path, doneSuffix) {
		return false
	}

	matched, _ := filepath.Match(w.pattern, filepath.Base(path))
	return matched
}

func (w *Watcher) process(ctx context.Context, path string) {
	if err := w.handle(ctx, path); err != nil {
		w.logger.Error(err, "failed to handle file", "path", path)
	}
}
