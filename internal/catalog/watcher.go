package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// debounceWindow batches rapid editor saves into a single reload.
const debounceWindow = 500 * time.Millisecond

// Watcher reloads the catalog flatfile when it changes on disk and swaps the result into a
// Store. A reload that fails to parse keeps the previous catalog.
type Watcher struct {
	logger logr.Logger
	path   string
	store  *Store

	// onSwap, if set, is invoked with the new catalog after each successful reload.
	onSwap func(*Catalog)
}

// NewWatcher creates a Watcher for the flatfile at path that publishes reloads to store.
func NewWatcher(logger logr.Logger, path string, store *Store) *Watcher {
	return &Watcher{
		logger: logger,
		path:   path,
		store:  store,
	}
}

// OnSwap registers fn to be called after each successful reload. It must be called before Watch.
func (w *Watcher) OnSwap(fn func(*Catalog)) {
	w.onSwap = fn
}

// Watch is a blocking call that watches the catalog file until ctx is cancelled. The parent
// directory is watched rather than the file itself because editors and config managers commonly
// replace files via rename.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fs watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "watch %v", filepath.Dir(w.path))
	}

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				fire = debounce.C
			} else {
				debounce.Reset(debounceWindow)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err, "Catalog watcher error")

		case <-fire:
			debounce = nil
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, err := FromYAMLFile(w.path)
	if err != nil {
		w.logger.Error(err, "Catalog reload failed, keeping previous catalog", "path", w.path)
		return
	}

	w.store.Set(c)
	w.logger.Info("Catalog reloaded", "path", w.path, "services", c.Len())

	if w.onSwap != nil {
		w.onSwap(c)
	}
}
