package refdb

import (
	"context"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/maputils"
	"github.com/go-git/go-git/v5/plumbing"
)

// ReflogEntry records a single change of a reference.
type ReflogEntry struct {
	// Old is the zero hash if the reference was created.
	Old plumbing.Hash
	// New is the zero hash if the reference was removed.
	New     plumbing.Hash
	Message string
	Time    time.Time
	// TxID identifies the transaction that made the change.
	TxID string
}

// Change is a single write of a committed transaction.
type Change struct {
	Name plumbing.ReferenceName
	// Target is the zero Target if the reference was removed.
	Target refs.Target
	Reflog ReflogEntry
}

// Deleted returns true if the change removes the reference.
func (c Change) Deleted() bool {
	return c.Target.IsZero()
}

// Backend is the durable storage of a DB.
//
// The DB serializes calls to Commit and only calls it with changes to
// references it holds locks on.
type Backend interface {
	// Load returns every stored reference.
	Load(ctx context.Context) (map[plumbing.ReferenceName]refs.Target, error)
	// Commit applies the changes in order and appends their reflog entries.
	// Either all changes are stored or none are.
	Commit(ctx context.Context, changes []Change) error
	// Reflog returns the reflog of a reference, oldest entry first.
	Reflog(ctx context.Context, name plumbing.ReferenceName) ([]ReflogEntry, error)
	Close() error
}

// ErrClosed is returned by backends that have been closed.
var ErrClosed = errors.Sentinel("reference backend is closed")

// MemoryBackend keeps references in memory only.
type MemoryBackend struct {
	mu     sync.Mutex
	refs   map[plumbing.ReferenceName]refs.Target
	reflog map[plumbing.ReferenceName][]ReflogEntry
	closed bool
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns a backend holding the given references.
func NewMemoryBackend(initial ...refs.Reference) *MemoryBackend {
	b := &MemoryBackend{
		refs:   make(map[plumbing.ReferenceName]refs.Target, len(initial)),
		reflog: map[plumbing.ReferenceName][]ReflogEntry{},
	}
	for _, ref := range initial {
		b.refs[ref.Name] = ref.Target
	}
	return b
}

func (b *MemoryBackend) Load(context.Context) (map[plumbing.ReferenceName]refs.Target, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return maputils.Copy(b.refs), nil
}

func (b *MemoryBackend) Commit(_ context.Context, changes []Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for _, c := range changes {
		if c.Deleted() {
			delete(b.refs, c.Name)
		} else {
			b.refs[c.Name] = c.Target
		}
		b.reflog[c.Name] = append(b.reflog[c.Name], c.Reflog)
	}
	return nil
}

func (b *MemoryBackend) Reflog(_ context.Context, name plumbing.ReferenceName) ([]ReflogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	entries := make([]ReflogEntry, len(b.reflog[name]))
	copy(entries, b.reflog[name])
	return entries, nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
