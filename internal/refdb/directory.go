package refdb

import (
	"io"
	"sync"

	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/maputils"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// snapshot is an immutable state of the reference directory.
type snapshot struct {
	refs map[plumbing.ReferenceName]refs.Target

	namesOnce sync.Once
	names     []plumbing.ReferenceName
}

func newSnapshot(m map[plumbing.ReferenceName]refs.Target) *snapshot {
	if m == nil {
		m = map[plumbing.ReferenceName]refs.Target{}
	}
	return &snapshot{refs: m}
}

func (s *snapshot) sortedNames() []plumbing.ReferenceName {
	s.namesOnce.Do(func() {
		s.names = maputils.SortedKeys(s.refs)
	})
	return s.names
}

// apply returns a new snapshot with the changes applied in order.
func (s *snapshot) apply(changes []Change) *snapshot {
	next := maputils.Copy(s.refs)
	for _, c := range changes {
		if c.Deleted() {
			delete(next, c.Name)
		} else {
			next[c.Name] = c.Target
		}
	}
	return newSnapshot(next)
}

// ReferenceIter iterates over the references of a snapshot. It is not safe for
// concurrent use and cannot be restarted once exhausted.
type ReferenceIter struct {
	snap    *snapshot
	names   []plumbing.ReferenceName
	pattern refs.Pattern
	pos     int
}

// Next returns the next matching reference or io.EOF.
func (it *ReferenceIter) Next() (refs.Reference, error) {
	for it.pos < len(it.names) {
		name := it.names[it.pos]
		it.pos++
		if it.pattern.Match(name) {
			return refs.Reference{Name: name, Target: it.snap.refs[name]}, nil
		}
	}
	return refs.Reference{}, io.EOF
}

// ForEach calls fn for every remaining reference. Returning storer.ErrStop
// from fn stops the iteration without an error.
func (it *ReferenceIter) ForEach(fn func(refs.Reference) error) error {
	defer it.Close()
	for {
		ref, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err := fn(ref); err != nil {
			if err == storer.ErrStop {
				return nil
			}
			return err
		}
	}
}

// Close exhausts the iterator.
func (it *ReferenceIter) Close() {
	it.pos = len(it.names)
}

// All collects the remaining references.
func (it *ReferenceIter) All() []refs.Reference {
	var all []refs.Reference
	_ = it.ForEach(func(ref refs.Reference) error {
		all = append(all, ref)
		return nil
	})
	return all
}
