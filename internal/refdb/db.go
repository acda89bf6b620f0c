// Package refdb implements a transactional reference database.
//
// A DB maps reference names to targets. Readers never block: they always see
// a fully committed snapshot. Writers submit a batch of updates to Update,
// which locks every reference the batch touches, evaluates the updates in
// order, and then either publishes all accepted changes at once or nothing.
package refdb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// Ancestry decides whether moving a reference from oldOid to newOid is a
// fast-forward. It must return true if oldOid is the zero hash.
type Ancestry interface {
	IsFastForward(ctx context.Context, name plumbing.ReferenceName, newOid, oldOid plumbing.Hash) (bool, error)
}

// DefaultLockTimeout is how long Update waits for the references of a batch
// to become available.
const DefaultLockTimeout = 10 * time.Second

type DB struct {
	backend  Backend
	ancestry Ancestry
	log      logrus.FieldLogger

	current  atomic.Pointer[snapshot]
	locks    lockTable
	commitMu sync.Mutex

	lockTimeout          time.Duration
	sequentialDuplicates bool
	hooks                []Hook
	metrics              *Metrics
}

type Option func(*DB)

// WithLogger sets the logger of the database.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *DB) {
		d.log = log
	}
}

// WithLockTimeout sets how long Update waits to lock references. A
// non-positive value waits until the context is done.
func WithLockTimeout(timeout time.Duration) Option {
	return func(d *DB) {
		d.lockTimeout = timeout
	}
}

// WithSequentialDuplicates allows a batch to contain several updates of the
// same reference. They are evaluated in order, each observing the changes
// staged by the previous ones, so the last accepted update wins.
// By default such batches fail with refs.ErrDuplicateUpdate.
func WithSequentialDuplicates() Option {
	return func(d *DB) {
		d.sequentialDuplicates = true
	}
}

// WithHook registers a reference-transaction hook.
func WithHook(hook Hook) Option {
	return func(d *DB) {
		d.hooks = append(d.hooks, hook)
	}
}

// WithMetrics records transaction metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(d *DB) {
		d.metrics = m
	}
}

// Open loads the references stored in backend.
// The DB takes ownership of the backend and closes it in Close.
func Open(ctx context.Context, backend Backend, ancestry Ancestry, opts ...Option) (*DB, error) {
	d := &DB{
		backend:     backend,
		ancestry:    ancestry,
		log:         logrus.WithField("component", "refdb"),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load references")
	}
	d.current.Store(newSnapshot(loaded))
	d.log.WithField("refs", len(loaded)).Debug("opened reference database")
	return d, nil
}

// Close closes the underlying backend.
func (d *DB) Close() error {
	return d.backend.Close()
}

// FindReference returns the reference with the given name. The second return
// value is false if no such reference exists.
func (d *DB) FindReference(name plumbing.ReferenceName) (refs.Reference, bool) {
	target, ok := d.current.Load().refs[name]
	if !ok {
		return refs.Reference{}, false
	}
	return refs.Reference{Name: name, Target: target}, true
}

// FindReferences returns an iterator over all references selected by pattern,
// in name order. The iterator reads from the snapshot that was current when
// FindReferences was called.
func (d *DB) FindReferences(pattern refs.Pattern) *ReferenceIter {
	snap := d.current.Load()
	return &ReferenceIter{snap: snap, names: snap.sortedNames(), pattern: pattern}
}

// Reflog returns the reflog of the given reference, oldest entry first.
func (d *DB) Reflog(ctx context.Context, name plumbing.ReferenceName) ([]ReflogEntry, error) {
	entries, err := d.backend.Reflog(ctx, name)
	if err != nil {
		return nil, errors.WrapIff(err, "failed to read reflog of %s", name)
	}
	return entries, nil
}
