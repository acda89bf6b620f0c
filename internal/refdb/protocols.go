package refdb

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
)

// outcome is the result of evaluating a single update. An error returned
// alongside an outcome aborts the whole transaction instead.
type outcome struct {
	updated []refs.Updated
	// rejection is set if the update was rejected.
	rejection error
}

func rejected(reason error) outcome {
	return outcome{rejection: reason}
}

func (tx *transaction) applyDirect(ctx context.Context, u refs.DirectUpdate) (outcome, error) {
	current, err := tx.resolve(u.Name)
	if err != nil {
		return outcome{}, err
	}
	if err := u.Previous.Guard(current); err != nil {
		return rejected(err), nil
	}

	ff, err := tx.fastForward(ctx, u.Name, u.Target, current)
	if err != nil {
		return outcome{}, err
	}
	if !ff {
		switch u.NoFF {
		case refs.Abort:
			return outcome{}, &refs.NonFastForwardError{Name: u.Name, Old: current, New: u.Target}
		case refs.Reject:
			return rejected(errors.WrapIff(refs.ErrNotFastForward, "%s is at %s", u.Name, current)), nil
		case refs.Allow:
			tx.log.WithField("ref", u.Name).Debug("allowing non-fast-forward update")
		}
	}

	err = tx.stage(u.Name, refs.DirectTarget(u.Target), ReflogEntry{
		Old:     current,
		New:     u.Target,
		Message: u.Message,
		Time:    time.Now(),
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{updated: []refs.Updated{
		refs.UpdatedDirect{Name: u.Name, Target: u.Target, Previous: current},
	}}, nil
}

func (tx *transaction) applySymbolic(ctx context.Context, u refs.SymbolicUpdate) (outcome, error) {
	alias, aliasExists := tx.lookup(u.Name)
	previous, err := tx.resolve(u.Name)
	if err != nil {
		return outcome{}, err
	}
	if err := u.Previous.Guard(previous); err != nil {
		return rejected(err), nil
	}

	if aliasExists && !alias.IsSymbolic() {
		switch u.TypeChange {
		case refs.Abort:
			return outcome{}, &refs.TypeChangeError{Name: u.Name, Current: alias.Oid()}
		case refs.Reject:
			return rejected(errors.WrapIff(refs.ErrTypeChange, "%s is a direct reference", u.Name)), nil
		case refs.Allow:
			tx.log.WithField("ref", u.Name).Debug("allowing direct reference to become symbolic")
		}
	}

	dest, destExists := tx.lookup(u.Target.Name)
	if destExists && dest.IsSymbolic() {
		return outcome{}, &refs.TargetSymbolicError{
			Name:        u.Name,
			Destination: u.Target.Name,
			Pointee:     dest.Symbolic(),
		}
	}

	// The object the alias resolves to once the batch is applied.
	resolved := dest.Oid()
	writeDest := false
	if !u.Target.Target.IsZero() {
		ff, err := tx.fastForward(ctx, u.Target.Name, u.Target.Target, dest.Oid())
		if err != nil {
			return outcome{}, err
		}
		if !ff {
			return rejected(errors.WrapIff(
				refs.ErrNotFastForward, "%s is at %s", u.Target.Name, dest.Oid(),
			)), nil
		}
		resolved = u.Target.Target
		writeDest = true
	}

	now := time.Now()
	err = tx.stage(u.Name, refs.SymbolicTarget(u.Target.Name), ReflogEntry{
		Old:     previous,
		New:     resolved,
		Message: u.Message,
		Time:    now,
	})
	if err != nil {
		return outcome{}, err
	}
	updated := []refs.Updated{refs.UpdatedSymbolic{
		Name:       u.Name,
		TargetName: u.Target.Name,
		Previous:   previous,
	}}

	if writeDest {
		err = tx.stage(u.Target.Name, refs.DirectTarget(u.Target.Target), ReflogEntry{
			Old:     dest.Oid(),
			New:     u.Target.Target,
			Message: u.Message,
			Time:    now,
		})
		if err != nil {
			return outcome{}, err
		}
		updated = append(updated, refs.UpdatedDirect{
			Name:     u.Target.Name,
			Target:   u.Target.Target,
			Previous: dest.Oid(),
		})
	}
	return outcome{updated: updated}, nil
}

func (tx *transaction) applyRemove(u refs.RemoveUpdate) (outcome, error) {
	current, err := tx.resolve(u.Name)
	if err != nil {
		return outcome{}, err
	}
	if err := u.Previous.Guard(current); err != nil {
		return rejected(err), nil
	}
	if current.IsZero() {
		return outcome{}, errors.WithStack(errors.Combine(
			refs.ErrInvariantViolation,
			errors.Errorf("guard %s accepted missing reference %s", u.Previous, u.Name),
		))
	}

	err = tx.stage(u.Name, refs.Target{}, ReflogEntry{
		Old:     current,
		New:     plumbing.ZeroHash,
		Message: u.Message,
		Time:    time.Now(),
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{updated: []refs.Updated{refs.Removed{Name: u.Name, Previous: current}}}, nil
}
