// Package loader manages loading from multiple sources
package loader

import (
	"context"

	"github.com/ninja0404/whale-signal/pkg/config/reader"
	"github.com/ninja0404/whale-signal/pkg/config/source"
)

// Loader manages loading sources
type Loader interface {
	// Close stops the loader
	Close() error
	// Load the sources
	Load(...source.Source) error
	// Snapshot is a merged ChangeSet
	Snapshot() (*Snapshot, error)
	// Sync force syncs the sources
	Sync() error
	// Watch for changes
	Watch(...string) (Watcher, error)
	// String name of loader
	String() string
}

// Watcher lets you watch sources and returns a merged ChangeSet
type Watcher interface {
	// Next is a blocking call that returns the next snapshot
	Next() (*Snapshot, error)
	// Stop watching for changes
	Stop() error
}

// Snapshot is a merged ChangeSet
type Snapshot struct {
	// The merged ChangeSet
	ChangeSet *source.ChangeSet
	// Deterministic and comparable version of the snapshot
	Version string
}

type Options struct {
	Reader reader.Reader
	Source []source.Source

	// for alternative data
	Context context.Context
}

type Option func(o *Options)

// Copy snapshot
func Copy(s *Snapshot) *Snapshot {
	cs := *(s.ChangeSet)

	return &Snapshot{
		ChangeSet: &cs,
		Version:   s.Version,
	}
}
