// Package jsonfiledb stores references in a single JSON file.
package jsonfiledb

import (
	"context"
	"sync"

	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
)

type DB struct {
	mu       sync.Mutex
	state    *state
	filepath string
	closed   bool
}

var _ refdb.Backend = (*DB)(nil)

// Open opens a JSON file database at the given path.
// If the file does not exist, it is created on the first commit.
func Open(filepath string) (*DB, error) {
	state, err := readState(filepath)
	if err != nil {
		return nil, err
	}
	return &DB{state: state, filepath: filepath}, nil
}

func (d *DB) Load(context.Context) (map[plumbing.ReferenceName]refs.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, refdb.ErrClosed
	}
	return d.state.references()
}

func (d *DB) Commit(_ context.Context, changes []refdb.Change) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return refdb.ErrClosed
	}
	// Make a copy of the state so that a failed write leaves it untouched.
	next := d.state.copy()
	for _, c := range changes {
		next.apply(c)
	}
	if err := next.write(d.filepath); err != nil {
		return err
	}
	d.state = next
	return nil
}

func (d *DB) Reflog(_ context.Context, name plumbing.ReferenceName) ([]refdb.ReflogEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, refdb.ErrClosed
	}
	return d.state.reflog(name)
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
