package config

import (
	"sync"
	"sync/atomic"
)

// Loader loads a configuration at most once, on first use.
//
// A Loader is safe for concurrent use. Every caller of Get observes the same
// result, including a load failure.
type Loader struct {
	paths []string

	once   sync.Once
	loaded atomic.Bool
	cfg    *Configuration
	err    error
}

// NewLoader creates a loader searching paths, or DefaultSearchPaths when none
// are given.
func NewLoader(paths ...string) *Loader {
	return &Loader{paths: paths}
}

// Get returns the configuration, loading it on the first call.
func (l *Loader) Get() (*Configuration, error) {
	l.once.Do(func() {
		l.cfg, l.err = Load(l.paths...)
		l.loaded.Store(true)
	})
	return l.cfg, l.err
}

// Loaded reports whether Get has completed a load attempt.
func (l *Loader) Loaded() bool {
	return l.loaded.Load()
}
