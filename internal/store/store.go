// Package store holds the dataset currently being served and reloads it when
// the source file changes.
package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vcmap/internal/dataset"
	"vcmap/internal/metrics"
)

// LoadFunc builds a dataset from path.
type LoadFunc func(path string) (*dataset.Dataset, error)

type fileKey struct {
	path    string
	modTime time.Time
	size    int64
}

// Store memoizes the loaded dataset keyed on the source file's path, mod time
// and size. A failed load replaces the dataset with the error.
type Store struct {
	log     zerolog.Logger
	path    string
	load    LoadFunc
	metrics *metrics.Metrics

	mu      sync.RWMutex
	current *dataset.Dataset
	err     error
	key     fileKey
	loaded  bool
}

func New(log zerolog.Logger, path string, load LoadFunc, m *metrics.Metrics) *Store {
	return &Store{log: log, path: path, load: load, metrics: m}
}

func (s *Store) Path() string { return s.path }

// Current returns the latest dataset, or the error from the latest load.
func (s *Store) Current() (*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, fmt.Errorf("%w: %s: not loaded yet", dataset.ErrDataUnavailable, s.path)
	}
	return s.current, s.err
}

// Refresh reloads the dataset when the file identity changed since the last
// load. It reports whether a load was attempted.
func (s *Store) Refresh() (bool, error) {
	key, statErr := s.stat()

	s.mu.RLock()
	unchanged := s.loaded && statErr == nil && s.err == nil && key == s.key
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	return true, s.Reload()
}

// Reload loads the dataset unconditionally.
func (s *Store) Reload() error {
	start := time.Now()
	key, _ := s.stat()
	ds, err := s.load(s.path)

	s.mu.Lock()
	s.loaded = true
	s.key = key
	if err != nil {
		s.current = nil
		s.err = err
	} else {
		s.current = ds
		s.err = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.ObserveDatasetLoad(false, 0, 0)
		s.log.Error().Err(err).Str("path", s.path).Msg("dataset_load_failed")
		return err
	}

	s.metrics.ObserveDatasetLoad(true, len(ds.Firms), ds.Dropped)
	s.log.Info().
		Str("path", s.path).
		Int("firms", len(ds.Firms)).
		Int("dropped", ds.Dropped).
		Int("sectors", len(ds.Sectors)).
		Int("stages", len(ds.Stages)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("dataset_loaded")
	return nil
}

func (s *Store) stat() (fileKey, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return fileKey{path: s.path}, err
	}
	return fileKey{path: s.path, modTime: info.ModTime(), size: info.Size()}, nil
}
