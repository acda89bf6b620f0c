package refdb

import (
	"context"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
)

// lockTable hands out exclusive per-reference locks. Entries only exist while
// a lock is held or waited for.
type lockTable struct {
	mu    sync.Mutex
	locks map[plumbing.ReferenceName]*nameLock
}

type nameLock struct {
	// A buffered channel of size one: a successful send acquires the lock.
	ch      chan struct{}
	waiters int
}

// lock blocks until the reference is locked or ctx is done. The returned
// function releases the lock.
func (t *lockTable) lock(ctx context.Context, name plumbing.ReferenceName) (func(), error) {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = map[plumbing.ReferenceName]*nameLock{}
	}
	l, ok := t.locks[name]
	if !ok {
		l = &nameLock{ch: make(chan struct{}, 1)}
		t.locks[name] = l
	}
	l.waiters++
	t.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			t.release(name, l)
		}, nil
	case <-ctx.Done():
		t.release(name, l)
		return nil, ctx.Err()
	}
}

func (t *lockTable) release(name plumbing.ReferenceName, l *nameLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(t.locks, name)
	}
}

// held returns the number of references that are currently locked or waited
// for.
func (t *lockTable) held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
