package refdb_test

import (
	"context"
	"testing"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_CreateReference(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")

	applied, err := f.update(refs.DirectUpdate{
		Name:     mainRef,
		Target:   c1,
		NoFF:     refs.Allow,
		Previous: refs.MustNotExist(),
		Message:  "create main",
	})
	require.NoError(t, err)
	assert.Empty(t, applied.Rejected)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedDirect{Name: mainRef, Target: c1, Previous: plumbing.ZeroHash},
	}, applied.Updated)
	f.requireRef(mainRef, refs.DirectTarget(c1))

	reflog, err := f.db.Reflog(f.ctx, mainRef)
	require.NoError(t, err)
	require.Len(t, reflog, 1)
	assert.Equal(t, plumbing.ZeroHash, reflog[0].Old)
	assert.Equal(t, c1, reflog[0].New)
	assert.Equal(t, "create main", reflog[0].Message)
	assert.NotEmpty(t, reflog[0].TxID)
	assert.False(t, reflog[0].Time.IsZero())
}

func TestUpdate_FastForward(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	_, err := f.update(refs.DirectUpdate{Name: mainRef, Target: c1, Previous: refs.MustNotExist()})
	require.NoError(t, err)

	applied, err := f.update(refs.DirectUpdate{
		Name:     mainRef,
		Target:   c2,
		NoFF:     refs.Abort,
		Previous: refs.MustExistAndMatch(c1),
	})
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedDirect{Name: mainRef, Target: c2, Previous: c1},
	}, applied.Updated)
	f.requireRef(mainRef, refs.DirectTarget(c2))
}

func TestUpdate_NonFastForwardReject(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	c3 := f.objects.Commit("three")
	_, err := f.update(
		refs.DirectUpdate{Name: mainRef, Target: c2, Previous: refs.MustNotExist()},
		refs.DirectUpdate{Name: otherRef, Target: c1, Previous: refs.MustNotExist()},
	)
	require.NoError(t, err)

	rewind := refs.DirectUpdate{Name: mainRef, Target: c1, NoFF: refs.Reject, Previous: refs.Any()}
	advance := refs.DirectUpdate{Name: otherRef, Target: c3, NoFF: refs.Allow, Previous: refs.Any()}
	applied, err := f.update(rewind, advance)
	require.NoError(t, err)

	require.Len(t, applied.Rejected, 1)
	assert.Equal(t, rewind, applied.Rejected[0].Update)
	assert.True(t, errors.Is(applied.Rejected[0].Reason, refs.ErrNotFastForward))
	assert.Equal(t, []refs.Update{rewind}, applied.RejectedUpdates())
	assert.Equal(t, []refs.Updated{
		refs.UpdatedDirect{Name: otherRef, Target: c3, Previous: c1},
	}, applied.Updated)

	f.requireRef(mainRef, refs.DirectTarget(c2))
	f.requireRef(otherRef, refs.DirectTarget(c3))
}

func TestUpdate_NonFastForwardAbort(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	_, err := f.update(refs.DirectUpdate{Name: mainRef, Target: c2, Previous: refs.MustNotExist()})
	require.NoError(t, err)

	applied, err := f.update(
		refs.DirectUpdate{Name: otherRef, Target: c1, Previous: refs.MustNotExist()},
		refs.DirectUpdate{Name: mainRef, Target: c1, NoFF: refs.Abort, Previous: refs.Any()},
	)
	require.Error(t, err)
	assert.Nil(t, applied)
	assert.True(t, errors.Is(err, refs.ErrPolicyAbort))

	var nonFF *refs.NonFastForwardError
	require.True(t, errors.As(err, &nonFF))
	assert.Equal(t, mainRef, nonFF.Name)
	assert.Equal(t, c2, nonFF.Old)
	assert.Equal(t, c1, nonFF.New)

	f.requireRef(mainRef, refs.DirectTarget(c2))
	f.requireNoRef(otherRef)

	reflog, err := f.db.Reflog(f.ctx, otherRef)
	require.NoError(t, err)
	assert.Empty(t, reflog)
}

func TestUpdate_NonFastForwardAllow(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	_, err := f.update(refs.DirectUpdate{Name: mainRef, Target: c2, Previous: refs.MustNotExist()})
	require.NoError(t, err)

	applied, err := f.update(refs.DirectUpdate{Name: mainRef, Target: c1, NoFF: refs.Allow, Previous: refs.MustExist()})
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedDirect{Name: mainRef, Target: c1, Previous: c2},
	}, applied.Updated)
	f.requireRef(mainRef, refs.DirectTarget(c1))
}

func TestUpdate_GuardRejectionIsNeverEscalated(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two")
	_, err := f.update(refs.DirectUpdate{Name: mainRef, Target: c1, Previous: refs.MustNotExist()})
	require.NoError(t, err)

	// The guard fails before the (unrelated-history, Abort) fast-forward check
	// would have aborted the batch.
	stale := refs.DirectUpdate{Name: mainRef, Target: c2, NoFF: refs.Abort, Previous: refs.MustExistAndMatch(c2)}
	applied, err := f.update(stale)
	require.NoError(t, err)
	require.Len(t, applied.Rejected, 1)
	assert.Equal(t, stale, applied.Rejected[0].Update)

	var guardErr *refs.GuardError
	require.True(t, errors.As(applied.Rejected[0].Reason, &guardErr))
	assert.Equal(t, refs.DoesNotMatch, guardErr.Kind)
	assert.Equal(t, c1, guardErr.Given)
	f.requireRef(mainRef, refs.DirectTarget(c1))
}

func TestUpdate_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	update := refs.DirectUpdate{Name: mainRef, Target: c1, NoFF: refs.Abort, Previous: refs.MayExistAndMatch(c1)}

	first, err := f.update(update)
	require.NoError(t, err)
	second, err := f.update(update)
	require.NoError(t, err)

	require.Len(t, first.Updated, 1)
	require.Len(t, second.Updated, 1)
	assert.Equal(t, c1, first.Updated[0].(refs.UpdatedDirect).Target)
	assert.Equal(t, c1, second.Updated[0].(refs.UpdatedDirect).Target)
	assert.Equal(t, plumbing.ZeroHash, first.Updated[0].(refs.UpdatedDirect).Previous)
	assert.Equal(t, c1, second.Updated[0].(refs.UpdatedDirect).Previous)

	reflog, err := f.db.Reflog(f.ctx, mainRef)
	require.NoError(t, err)
	assert.Len(t, reflog, 2)
}

func TestUpdate_AtomicAbort(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	_, err := f.update(refs.DirectUpdate{Name: mainRef, Target: c2, Previous: refs.MustNotExist()})
	require.NoError(t, err)

	var batch []refs.Update
	for _, name := range []string{"a", "b", "c", "d"} {
		batch = append(batch, refs.DirectUpdate{
			Name:     plumbing.NewBranchReferenceName(name),
			Target:   c1,
			Previous: refs.MustNotExist(),
		})
	}
	batch = append(batch,
		refs.RemoveUpdate{Name: mainRef, Previous: refs.RemoveExisting()},
		refs.DirectUpdate{Name: "refs/heads/z", Target: c1, Previous: refs.Any()},
	)
	// Insert the aborting update in the middle of the batch.
	abort := refs.SymbolicUpdate{
		Name:       "refs/heads/e",
		Target:     refs.SymrefTarget{Name: "refs/heads/f"},
		TypeChange: refs.Abort,
		Previous:   refs.Any(),
	}
	_, err = f.update(refs.DirectUpdate{Name: "refs/heads/e", Target: c2, Previous: refs.MustNotExist()})
	require.NoError(t, err)
	batch = append(batch[:2], append([]refs.Update{abort}, batch[2:]...)...)

	applied, err := f.update(batch...)
	require.Error(t, err)
	assert.Nil(t, applied)
	assert.True(t, errors.Is(err, refs.ErrPolicyAbort))
	assert.True(t, errors.Is(err, refs.ErrTypeChange))

	for _, name := range []string{"a", "b", "c", "d", "f", "z"} {
		f.requireNoRef(plumbing.NewBranchReferenceName(name))
	}
	f.requireRef(mainRef, refs.DirectTarget(c2))
	f.requireRef("refs/heads/e", refs.DirectTarget(c2))
}

func TestUpdate_SymbolicCreatesDestination(t *testing.T) {
	f := newFixture(t, nil)
	c3 := f.objects.Commit("three")

	applied, err := f.update(refs.SymbolicUpdate{
		Name:       aliasRef,
		Target:     refs.SymrefTarget{Name: mainRef, Target: c3},
		TypeChange: refs.Allow,
		Previous:   refs.MustNotExist(),
		Message:    "point alias at main",
	})
	require.NoError(t, err)
	assert.Empty(t, applied.Rejected)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedSymbolic{Name: aliasRef, TargetName: mainRef, Previous: plumbing.ZeroHash},
		refs.UpdatedDirect{Name: mainRef, Target: c3, Previous: plumbing.ZeroHash},
	}, applied.Updated)

	f.requireRef(aliasRef, refs.SymbolicTarget(mainRef))
	f.requireRef(mainRef, refs.DirectTarget(c3))

	reflog, err := f.db.Reflog(f.ctx, aliasRef)
	require.NoError(t, err)
	require.Len(t, reflog, 1)
	assert.Equal(t, c3, reflog[0].New)
	assert.Equal(t, "point alias at main", reflog[0].Message)
}

func TestUpdate_SymbolicAdvancesDestination(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{direct(mainRef, c1)})

	applied, err := f.update(refs.SymbolicUpdate{
		Name:     aliasRef,
		Target:   refs.SymrefTarget{Name: mainRef, Target: c2},
		Previous: refs.MustNotExist(),
	})
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedSymbolic{Name: aliasRef, TargetName: mainRef, Previous: plumbing.ZeroHash},
		refs.UpdatedDirect{Name: mainRef, Target: c2, Previous: c1},
	}, applied.Updated)
	f.requireRef(mainRef, refs.DirectTarget(c2))

	t.Run("equal destination is written again", func(t *testing.T) {
		applied, err := f.update(refs.SymbolicUpdate{
			Name:     aliasRef,
			Target:   refs.SymrefTarget{Name: mainRef, Target: c2},
			Previous: refs.MustExistAndMatch(c2),
		})
		require.NoError(t, err)
		assert.Equal(t, []refs.Updated{
			refs.UpdatedSymbolic{Name: aliasRef, TargetName: mainRef, Previous: c2},
			refs.UpdatedDirect{Name: mainRef, Target: c2, Previous: c2},
		}, applied.Updated)
	})

	t.Run("non-fast-forward destination rejects the update", func(t *testing.T) {
		update := refs.SymbolicUpdate{
			Name:     aliasRef,
			Target:   refs.SymrefTarget{Name: mainRef, Target: c1},
			Previous: refs.Any(),
		}
		applied, err := f.update(update)
		require.NoError(t, err)
		require.Len(t, applied.Rejected, 1)
		assert.True(t, errors.Is(applied.Rejected[0].Reason, refs.ErrNotFastForward))
		f.requireRef(mainRef, refs.DirectTarget(c2))
	})
}

func TestUpdate_SymbolicAliasOnly(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{direct(mainRef, c1)})

	applied, err := f.update(
		refs.SymbolicUpdate{Name: aliasRef, Target: refs.SymrefTarget{Name: mainRef}, Previous: refs.Any()},
		refs.SymbolicUpdate{Name: plumbing.HEAD, Target: refs.SymrefTarget{Name: "refs/heads/unborn"}, Previous: refs.Any()},
	)
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedSymbolic{Name: aliasRef, TargetName: mainRef, Previous: plumbing.ZeroHash},
		refs.UpdatedSymbolic{Name: plumbing.HEAD, TargetName: "refs/heads/unborn", Previous: plumbing.ZeroHash},
	}, applied.Updated)
	f.requireRef(mainRef, refs.DirectTarget(c1))
	f.requireRef(plumbing.HEAD, refs.SymbolicTarget("refs/heads/unborn"))
	f.requireNoRef("refs/heads/unborn")
}

func TestUpdate_SymbolicTypeChange(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	initial := []refs.Reference{direct(aliasRef, c1), direct(mainRef, c1)}
	update := func(policy refs.Policy) refs.SymbolicUpdate {
		return refs.SymbolicUpdate{
			Name:       aliasRef,
			Target:     refs.SymrefTarget{Name: mainRef},
			TypeChange: policy,
			Previous:   refs.Any(),
		}
	}

	t.Run("abort", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), initial)
		_, err := f.update(update(refs.Abort))
		var typeChange *refs.TypeChangeError
		require.True(t, errors.As(err, &typeChange))
		assert.Equal(t, aliasRef, typeChange.Name)
		assert.Equal(t, c1, typeChange.Current)
		f.requireRef(aliasRef, refs.DirectTarget(c1))
	})

	t.Run("reject", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), initial)
		applied, err := f.update(update(refs.Reject))
		require.NoError(t, err)
		require.Len(t, applied.Rejected, 1)
		assert.True(t, errors.Is(applied.Rejected[0].Reason, refs.ErrTypeChange))
		assert.False(t, errors.Is(applied.Rejected[0].Reason, refs.ErrPolicyAbort))
		f.requireRef(aliasRef, refs.DirectTarget(c1))
	})

	t.Run("allow", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), initial)
		applied, err := f.update(update(refs.Allow))
		require.NoError(t, err)
		assert.Equal(t, []refs.Updated{
			refs.UpdatedSymbolic{Name: aliasRef, TargetName: mainRef, Previous: c1},
		}, applied.Updated)
		f.requireRef(aliasRef, refs.SymbolicTarget(mainRef))
	})
}

func TestUpdate_SymbolicTargetSymbolic(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{
		direct(mainRef, c1),
		symbolic(plumbing.HEAD, mainRef),
	})

	_, err := f.update(
		refs.DirectUpdate{Name: otherRef, Target: c1, Previous: refs.MustNotExist()},
		refs.SymbolicUpdate{
			Name:       aliasRef,
			Target:     refs.SymrefTarget{Name: plumbing.HEAD, Target: c1},
			TypeChange: refs.Allow,
			Previous:   refs.Any(),
		},
	)
	var targetSymbolic *refs.TargetSymbolicError
	require.True(t, errors.As(err, &targetSymbolic))
	assert.Equal(t, plumbing.HEAD, targetSymbolic.Destination)
	assert.Equal(t, mainRef, targetSymbolic.Pointee)
	assert.True(t, errors.Is(err, refs.ErrPolicyAbort))
	f.requireNoRef(aliasRef)
	f.requireNoRef(otherRef)
}

func TestUpdate_DirectThroughAlias(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{
		direct(mainRef, c1),
		symbolic(aliasRef, mainRef),
	})

	// The guard and the fast-forward check see the oid of the pointee, but the
	// write replaces the alias itself.
	applied, err := f.update(refs.DirectUpdate{
		Name:     aliasRef,
		Target:   c2,
		Previous: refs.MustExistAndMatch(c1),
	})
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{
		refs.UpdatedDirect{Name: aliasRef, Target: c2, Previous: c1},
	}, applied.Updated)
	f.requireRef(aliasRef, refs.DirectTarget(c2))
	f.requireRef(mainRef, refs.DirectTarget(c1))
}

func TestUpdate_Remove(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two")
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{
		direct(mainRef, c1),
		direct(otherRef, c2),
	})

	stale := refs.RemoveUpdate{Name: otherRef, Previous: refs.RemoveMatching(c1)}
	missing := refs.RemoveUpdate{Name: "refs/heads/missing", Previous: refs.RemoveExisting()}
	applied, err := f.update(
		refs.RemoveUpdate{Name: mainRef, Previous: refs.RemoveMatching(c1), Message: "delete main"},
		stale,
		missing,
	)
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{refs.Removed{Name: mainRef, Previous: c1}}, applied.Updated)
	assert.Equal(t, []refs.Update{stale, missing}, applied.RejectedUpdates())

	f.requireNoRef(mainRef)
	f.requireRef(otherRef, refs.DirectTarget(c2))

	reflog, err := f.db.Reflog(f.ctx, mainRef)
	require.NoError(t, err)
	require.Len(t, reflog, 1)
	assert.Equal(t, c1, reflog[0].Old)
	assert.Equal(t, plumbing.ZeroHash, reflog[0].New)
	assert.Equal(t, "delete main", reflog[0].Message)
}

func TestUpdate_RemoveAlias(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{
		direct(mainRef, c1),
		symbolic(aliasRef, mainRef),
	})

	applied, err := f.update(refs.RemoveUpdate{Name: aliasRef, Previous: refs.RemoveMatching(c1)})
	require.NoError(t, err)
	assert.Equal(t, []refs.Updated{refs.Removed{Name: aliasRef, Previous: c1}}, applied.Updated)
	f.requireNoRef(aliasRef)
	f.requireRef(mainRef, refs.DirectTarget(c1))
}

func TestUpdate_NonCommitObjects(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	tag := f.objects.Tag("v1", c1)
	blob := f.objects.Blob("contents")
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{
		direct("refs/tags/v1", tag),
		direct(mainRef, c1),
	})

	// The tag points at c1 but is not peeled, so this is not a fast-forward.
	applied, err := f.update(
		refs.DirectUpdate{Name: "refs/tags/v1", Target: c1, NoFF: refs.Reject, Previous: refs.Any()},
		refs.DirectUpdate{Name: mainRef, Target: blob, NoFF: refs.Reject, Previous: refs.Any()},
	)
	require.NoError(t, err)
	assert.Empty(t, applied.Updated)
	require.Len(t, applied.Rejected, 2)
	for _, r := range applied.Rejected {
		assert.True(t, errors.Is(r.Reason, refs.ErrNotFastForward))
	}

	_, err = f.update(refs.DirectUpdate{Name: mainRef, Target: blob, NoFF: refs.Abort, Previous: refs.Any()})
	assert.True(t, errors.Is(err, refs.ErrNotFastForward))
	f.requireRef(mainRef, refs.DirectTarget(c1))

	// Rewriting a reference to the blob it already points at is not a
	// fast-forward either.
	f = newFixtureWithAncestry(t, f.objects, mustOracle(t, f), []refs.Reference{direct(otherRef, blob)})
	_, err = f.update(refs.DirectUpdate{Name: otherRef, Target: blob, NoFF: refs.Abort, Previous: refs.Any()})
	var nonFF *refs.NonFastForwardError
	require.True(t, errors.As(err, &nonFF))
	assert.Equal(t, blob, nonFF.Old)
	f.requireRef(otherRef, refs.DirectTarget(blob))
}

func TestUpdate_InvalidUpdates(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")

	for name, update := range map[string]refs.Update{
		"nil":         nil,
		"empty name":  refs.DirectUpdate{Target: c1},
		"zero oid":    refs.DirectUpdate{Name: mainRef},
		"self alias":  refs.SymbolicUpdate{Name: aliasRef, Target: refs.SymrefTarget{Name: aliasRef}},
		"no target":   refs.SymbolicUpdate{Name: aliasRef},
		"pointer":     &refs.DirectUpdate{Name: mainRef, Target: c1},
		"nil pointer": (*refs.DirectUpdate)(nil),
		"nil remove":  (*refs.RemoveUpdate)(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.update(update)
			assert.True(t, errors.Is(err, refs.ErrInvalidUpdate), "got %v", err)
		})
	}
}

func TestUpdate_DuplicateNames(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two", c1)
	batch := []refs.Update{
		refs.DirectUpdate{Name: mainRef, Target: c1, Previous: refs.MustNotExist()},
		refs.DirectUpdate{Name: mainRef, Target: c2, Previous: refs.MustExistAndMatch(c1)},
	}

	t.Run("rejected by default", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), nil)
		_, err := f.update(batch...)
		assert.True(t, errors.Is(err, refs.ErrDuplicateUpdate))
		f.requireNoRef(mainRef)
	})

	t.Run("symbolic destination collides", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), nil)
		_, err := f.update(
			refs.DirectUpdate{Name: mainRef, Target: c1, Previous: refs.Any()},
			refs.SymbolicUpdate{Name: aliasRef, Target: refs.SymrefTarget{Name: mainRef, Target: c2}, Previous: refs.Any()},
		)
		assert.True(t, errors.Is(err, refs.ErrDuplicateUpdate))
	})

	t.Run("alias-only destination does not collide", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), nil)
		applied, err := f.update(
			refs.DirectUpdate{Name: mainRef, Target: c1, Previous: refs.MustNotExist()},
			refs.SymbolicUpdate{Name: aliasRef, Target: refs.SymrefTarget{Name: mainRef}, Previous: refs.MustNotExist()},
		)
		require.NoError(t, err)
		assert.Equal(t, []refs.Updated{
			refs.UpdatedDirect{Name: mainRef, Target: c1, Previous: plumbing.ZeroHash},
			refs.UpdatedSymbolic{Name: aliasRef, TargetName: mainRef, Previous: plumbing.ZeroHash},
		}, applied.Updated)
		f.requireRef(aliasRef, refs.SymbolicTarget(mainRef))
	})

	t.Run("sequential evaluation", func(t *testing.T) {
		f := newFixtureWithAncestry(t, f.objects, mustOracle(t, f), nil, refdb.WithSequentialDuplicates())
		applied, err := f.update(batch...)
		require.NoError(t, err)
		assert.Equal(t, []refs.Updated{
			refs.UpdatedDirect{Name: mainRef, Target: c1, Previous: plumbing.ZeroHash},
			refs.UpdatedDirect{Name: mainRef, Target: c2, Previous: c1},
		}, applied.Updated)
		f.requireRef(mainRef, refs.DirectTarget(c2))

		reflog, err := f.db.Reflog(f.ctx, mainRef)
		require.NoError(t, err)
		assert.Len(t, reflog, 2)
	})

	t.Run("sequential removal then create", func(t *testing.T) {
		f := newFixtureWithAncestry(
			t, f.objects, mustOracle(t, f),
			[]refs.Reference{direct(mainRef, c2)},
			refdb.WithSequentialDuplicates(),
		)
		applied, err := f.update(
			refs.RemoveUpdate{Name: mainRef, Previous: refs.RemoveExisting()},
			refs.DirectUpdate{Name: mainRef, Target: c1, NoFF: refs.Abort, Previous: refs.MustNotExist()},
		)
		require.NoError(t, err)
		assert.Empty(t, applied.Rejected)
		f.requireRef(mainRef, refs.DirectTarget(c1))
	})
}

func TestUpdate_EmptyBatch(t *testing.T) {
	f := newFixture(t, nil)
	applied, err := f.update()
	require.NoError(t, err)
	assert.Empty(t, applied.Updated)
	assert.Empty(t, applied.Rejected)
}

func TestUpdate_AncestryError(t *testing.T) {
	f := newFixture(t, nil)
	c1 := f.objects.Commit("one")
	c2 := f.objects.Commit("two")
	failing := ancestryFunc(func(_ context.Context, _ plumbing.ReferenceName, _, _ plumbing.Hash) (bool, error) {
		return false, errors.New("object database unavailable")
	})
	f = newFixtureWithAncestry(t, f.objects, failing, []refs.Reference{direct(mainRef, c1)})

	// Even with an Allow policy, an I/O failure aborts the batch.
	_, err := f.update(
		refs.DirectUpdate{Name: otherRef, Target: c1, Previous: refs.Any()},
		refs.DirectUpdate{Name: mainRef, Target: c2, NoFF: refs.Allow, Previous: refs.Any()},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object database unavailable")
	f.requireNoRef(otherRef)
}
