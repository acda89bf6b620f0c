package refdb

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/cleanup"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// transaction is the scope of a single Update call. It holds the locks of
// every reference the batch writes and stages changes until commit.
//
// The transaction MUST be finalized by calling either commit or abort.
type transaction struct {
	db  *DB
	id  string
	log logrus.FieldLogger

	locked map[plumbing.ReferenceName]bool
	// base is the snapshot that was current once all locks were acquired.
	base *snapshot
	// staged overlays base. The zero Target marks a staged removal.
	staged  map[plumbing.ReferenceName]refs.Target
	changes []Change
	// reads records what was observed for references outside of the lock set.
	reads map[plumbing.ReferenceName]refs.Target

	release cleanup.Cleanup
	done    bool
}

// begin locks the given references (which must be sorted) and opens a
// transaction.
func (d *DB) begin(
	ctx context.Context,
	id string,
	names []plumbing.ReferenceName,
	log logrus.FieldLogger,
) (*transaction, error) {
	tx := &transaction{
		db:     d,
		id:     id,
		log:    log,
		locked: make(map[plumbing.ReferenceName]bool, len(names)),
		staged: map[plumbing.ReferenceName]refs.Target{},
		reads:  map[plumbing.ReferenceName]refs.Target{},
	}

	lockCtx := ctx
	if d.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, d.lockTimeout)
		defer cancel()
	}
	start := time.Now()
	for _, name := range names {
		unlock, err := d.locks.lock(lockCtx, name)
		if err != nil {
			tx.release.Cleanup()
			return nil, errors.WrapIff(
				errors.Combine(refs.ErrLockFailed, err),
				"failed to lock %s", name,
			)
		}
		tx.release.Add(unlock)
		tx.locked[name] = true
	}
	d.metrics.observeLockWait(time.Since(start))
	tx.base = d.current.Load()
	log.WithField("locked", len(names)).Debug("locked references")
	return tx, nil
}

// lookup returns the target of a reference as seen by the transaction.
func (tx *transaction) lookup(name plumbing.ReferenceName) (refs.Target, bool) {
	if target, ok := tx.staged[name]; ok {
		return target, !target.IsZero()
	}
	target, ok := tx.base.refs[name]
	if !tx.locked[name] {
		tx.reads[name] = target
	}
	return target, ok
}

// resolve returns the object ID a reference currently points at, following a
// symbolic reference exactly once. The zero hash means the reference (or the
// reference it points at) does not exist.
func (tx *transaction) resolve(name plumbing.ReferenceName) (plumbing.Hash, error) {
	target, ok := tx.lookup(name)
	if !ok {
		return plumbing.ZeroHash, nil
	}
	if !target.IsSymbolic() {
		return target.Oid(), nil
	}
	pointee, ok := tx.lookup(target.Symbolic())
	if !ok {
		return plumbing.ZeroHash, nil
	}
	if pointee.IsSymbolic() {
		return plumbing.ZeroHash, &refs.TargetSymbolicError{
			Name:        name,
			Destination: target.Symbolic(),
			Pointee:     pointee.Symbolic(),
		}
	}
	return pointee.Oid(), nil
}

// stage records a write (or, with the zero target, a removal) of a locked
// reference.
func (tx *transaction) stage(name plumbing.ReferenceName, target refs.Target, entry ReflogEntry) error {
	if !tx.locked[name] {
		return errors.WithStack(errors.Combine(
			refs.ErrInvariantViolation,
			errors.Errorf("attempted to write %s without holding its lock", name),
		))
	}
	entry.TxID = tx.id
	tx.staged[name] = target
	tx.changes = append(tx.changes, Change{Name: name, Target: target, Reflog: entry})
	return nil
}

func (tx *transaction) info() TxInfo {
	return TxInfo{ID: tx.id, Changes: tx.changes}
}

// commit persists and publishes the staged changes and releases all locks.
func (tx *transaction) commit(ctx context.Context) error {
	if tx.done {
		panic("invariant error: reference transaction committed after it was finalized")
	}
	d := tx.db
	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	current := d.current.Load()
	for name, seen := range tx.reads {
		if now := current.refs[name]; now != seen {
			return errors.WrapIff(refs.ErrConcurrentUpdate, "%s changed from %q to %q", name, seen, now)
		}
	}

	for _, hook := range d.hooks {
		if err := hook.Transaction(ctx, Prepared, tx.info()); err != nil {
			return errors.WrapIf(errors.Combine(refs.ErrHookRejected, err), "prepared hook failed")
		}
	}

	if len(tx.changes) > 0 {
		if err := d.backend.Commit(ctx, tx.changes); err != nil {
			return errors.WrapIf(errors.Combine(refs.ErrPersistFailed, err), "failed to commit reference transaction")
		}
		d.current.Store(current.apply(tx.changes))
	}
	tx.finalize()

	for _, hook := range d.hooks {
		if err := hook.Transaction(ctx, Committed, tx.info()); err != nil {
			tx.log.WithError(err).Warn("committed hook failed")
		}
	}
	return nil
}

// abort discards the staged changes and releases all locks. It is a no-op if
// the transaction has already been finalized.
func (tx *transaction) abort(ctx context.Context, reason error) {
	if tx.done {
		return
	}
	tx.finalize()
	tx.log.WithError(reason).WithField("staged", len(tx.changes)).Warn("aborted reference transaction")
	for _, hook := range tx.db.hooks {
		if err := hook.Transaction(ctx, Aborted, tx.info()); err != nil {
			tx.log.WithError(err).Warn("aborted hook failed")
		}
	}
}

func (tx *transaction) finalize() {
	tx.done = true
	tx.release.Cleanup()
}
