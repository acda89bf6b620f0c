package refdb

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/maputils"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Update applies a batch of updates atomically.
//
// Updates are evaluated in order. An update whose guard fails (or whose
// policy is Reject) is returned in Applied.Rejected and the rest of the batch
// proceeds. Any other failure, including an Abort policy, aborts the whole
// batch: nothing is written and the error is returned.
func (d *DB) Update(ctx context.Context, updates []refs.Update) (*refs.Applied, error) {
	id := uuid.NewString()
	log := d.log.WithFields(logrus.Fields{"tx": id, "updates": len(updates)})
	start := time.Now()

	names, err := d.lockSet(updates)
	if err != nil {
		d.metrics.observeTransaction("aborted", nil)
		return nil, err
	}

	tx, err := d.begin(ctx, id, names, log)
	if err != nil {
		d.metrics.observeTransaction("aborted", nil)
		return nil, err
	}

	applied, err := tx.applyAll(ctx, updates)
	if err == nil {
		err = tx.commit(ctx)
	}
	if err != nil {
		tx.abort(ctx, err)
		d.metrics.observeTransaction("aborted", nil)
		return nil, err
	}

	d.metrics.observeTransaction("committed", applied)
	log.WithFields(logrus.Fields{
		"updated":  len(applied.Updated),
		"rejected": len(applied.Rejected),
		"duration": time.Since(start),
	}).Info("committed reference transaction")
	return applied, nil
}

// lockSet validates the batch and returns the sorted names of every reference
// it may read under lock or write.
func (d *DB) lockSet(updates []refs.Update) ([]plumbing.ReferenceName, error) {
	locked := map[plumbing.ReferenceName]struct{}{}
	writers := map[plumbing.ReferenceName]int{}
	claim := func(i int, name plumbing.ReferenceName) error {
		locked[name] = struct{}{}
		if prev, ok := writers[name]; ok && prev != i && !d.sequentialDuplicates {
			return errors.WrapIff(refs.ErrDuplicateUpdate, "updates %d and %d both write %s", prev, i, name)
		}
		writers[name] = i
		return nil
	}

	for i, update := range updates {
		// nil and pointer variants are rejected before RefName is called.
		switch update.(type) {
		case refs.DirectUpdate, refs.SymbolicUpdate, refs.RemoveUpdate:
		default:
			return nil, errors.WrapIff(refs.ErrInvalidUpdate, "update %d: unsupported update type %T", i, update)
		}
		if update.RefName() == "" {
			return nil, errors.WrapIff(refs.ErrInvalidUpdate, "update %d: empty reference name", i)
		}
		switch u := update.(type) {
		case refs.DirectUpdate:
			if u.Target.IsZero() {
				return nil, errors.WrapIff(refs.ErrInvalidUpdate, "update %d: %s: zero target", i, u.Name)
			}
		case refs.SymbolicUpdate:
			if u.Target.Name == "" {
				return nil, errors.WrapIff(refs.ErrInvalidUpdate, "update %d: %s: empty symbolic target", i, u.Name)
			}
			if u.Target.Name == u.Name {
				return nil, errors.WrapIff(refs.ErrInvalidUpdate, "update %d: %s cannot point at itself", i, u.Name)
			}
			// The destination is only written if the update moves it.
			if u.Target.Target.IsZero() {
				locked[u.Target.Name] = struct{}{}
			} else if err := claim(i, u.Target.Name); err != nil {
				return nil, err
			}
		}
		if err := claim(i, update.RefName()); err != nil {
			return nil, err
		}
	}

	// Every transaction locks in the same order, so batches cannot deadlock.
	return maputils.SortedKeys(locked), nil
}

func (tx *transaction) applyAll(ctx context.Context, updates []refs.Update) (*refs.Applied, error) {
	applied := &refs.Applied{}
	for i, update := range updates {
		var (
			out outcome
			err error
		)
		switch u := update.(type) {
		case refs.DirectUpdate:
			out, err = tx.applyDirect(ctx, u)
		case refs.SymbolicUpdate:
			out, err = tx.applySymbolic(ctx, u)
		case refs.RemoveUpdate:
			out, err = tx.applyRemove(u)
		}
		log := tx.log.WithFields(logrus.Fields{"update": i, "ref": update.RefName()})
		if err != nil {
			log.WithError(err).Debug("update aborted the transaction")
			return nil, err
		}
		if out.rejection != nil {
			log.WithError(out.rejection).Debug("rejected update")
			applied.Rejected = append(applied.Rejected, refs.Rejection{Update: update, Reason: out.rejection})
			continue
		}
		log.Debug("staged update")
		applied.Updated = append(applied.Updated, out.updated...)
	}
	return applied, nil
}

func (tx *transaction) fastForward(
	ctx context.Context,
	name plumbing.ReferenceName,
	newOid, oldOid plumbing.Hash,
) (bool, error) {
	if oldOid.IsZero() {
		return true, nil
	}
	ff, err := tx.db.ancestry.IsFastForward(ctx, name, newOid, oldOid)
	if err != nil {
		return false, errors.WrapIff(err, "failed to determine whether %s is a fast-forward", name)
	}
	return ff, nil
}
