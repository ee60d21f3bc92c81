package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher refreshes a Store when its source file is written, created,
// renamed or removed. Rapid bursts of events are collapsed into one refresh.
type Watcher struct {
	log      zerolog.Logger
	store    *Store
	debounce time.Duration
}

func NewWatcher(log zerolog.Logger, s *Store, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{log: log, store: s, debounce: debounce}
}

// Run watches the directory holding the data file until ctx is done. The
// directory is watched rather than the file so editors that replace the file
// atomically are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	target := filepath.Clean(w.store.Path())
	dir := filepath.Dir(target)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", dir).Str("file", filepath.Base(target)).Msg("watching dataset")

	// fire is nil until an event arms the debounce.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug().Str("op", event.Op.String()).Msg("dataset file event")
			fire = time.After(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("dataset watcher error")

		case <-fire:
			fire = nil
			if _, err := w.store.Refresh(); err != nil {
				w.log.Warn().Err(err).Msg("dataset refresh after change failed")
			}
		}
	}
}
