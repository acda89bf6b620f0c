// Package refdbtest contains a conformance suite for refdb.Backend
// implementations.
package refdbtest

import (
	"context"
	"testing"
	"time"

	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener opens the backend stored at path. It is called more than once with
// the same path to verify that committed state survives a reopen.
type Opener func(t *testing.T, path string) refdb.Backend

var (
	oid1 = plumbing.NewHash("1111111111111111111111111111111111111111")
	oid2 = plumbing.NewHash("2222222222222222222222222222222222222222")
)

// TestBackend runs the conformance suite against the backend returned by open.
func TestBackend(t *testing.T, open Opener) {
	t.Run("empty", func(t *testing.T) {
		b := open(t, t.TempDir()+"/refs")
		defer b.Close()
		loaded, err := b.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, loaded)
		reflog, err := b.Reflog(context.Background(), "refs/heads/main")
		require.NoError(t, err)
		assert.Empty(t, reflog)
	})

	t.Run("commit and reopen", func(t *testing.T) {
		testCommitAndReopen(t, open)
	})

	t.Run("closed", func(t *testing.T) {
		b := open(t, t.TempDir()+"/refs")
		require.NoError(t, b.Close())
		_, err := b.Load(context.Background())
		assert.Error(t, err)
		assert.Error(t, b.Commit(context.Background(), []refdb.Change{
			{Name: "refs/heads/main", Target: refs.DirectTarget(oid1)},
		}))
	})

	t.Run("with DB", func(t *testing.T) {
		testWithDB(t, open)
	})
}

func change(name plumbing.ReferenceName, target refs.Target, old, new plumbing.Hash, msg string) refdb.Change {
	return refdb.Change{
		Name:   name,
		Target: target,
		Reflog: refdb.ReflogEntry{
			Old:     old,
			New:     new,
			Message: msg,
			Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			TxID:    "tx-" + msg,
		},
	}
}

func testCommitAndReopen(t *testing.T, open Opener) {
	ctx := context.Background()
	path := t.TempDir() + "/refs"

	b := open(t, path)
	require.NoError(t, b.Commit(ctx, []refdb.Change{
		change("refs/heads/main", refs.DirectTarget(oid1), plumbing.ZeroHash, oid1, "create"),
		change("HEAD", refs.SymbolicTarget("refs/heads/main"), plumbing.ZeroHash, oid1, "head"),
		change("refs/heads/tmp", refs.DirectTarget(oid2), plumbing.ZeroHash, oid2, "tmp"),
	}))
	require.NoError(t, b.Commit(ctx, []refdb.Change{
		change("refs/heads/main", refs.DirectTarget(oid2), oid1, oid2, "advance"),
		change("refs/heads/tmp", refs.Target{}, oid2, plumbing.ZeroHash, "delete"),
	}))
	require.NoError(t, b.Close())

	b = open(t, path)
	defer b.Close()
	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[plumbing.ReferenceName]refs.Target{
		"refs/heads/main": refs.DirectTarget(oid2),
		"HEAD":            refs.SymbolicTarget("refs/heads/main"),
	}, loaded)

	reflog, err := b.Reflog(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Len(t, reflog, 2)
	assert.Equal(t, plumbing.ZeroHash, reflog[0].Old)
	assert.Equal(t, oid1, reflog[0].New)
	assert.Equal(t, "create", reflog[0].Message)
	assert.Equal(t, "tx-create", reflog[0].TxID)
	assert.True(t, reflog[0].Time.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, oid1, reflog[1].Old)
	assert.Equal(t, oid2, reflog[1].New)

	// The reflog of a removed reference is kept.
	reflog, err = b.Reflog(ctx, "refs/heads/tmp")
	require.NoError(t, err)
	require.Len(t, reflog, 2)
	assert.Equal(t, plumbing.ZeroHash, reflog[1].New)
	assert.Equal(t, "delete", reflog[1].Message)
}

func testWithDB(t *testing.T, open Opener) {
	ctx := context.Background()
	path := t.TempDir() + "/refs"
	ff := ancestry(func(plumbing.Hash, plumbing.Hash) bool { return true })

	db, err := refdb.Open(ctx, open(t, path), ff)
	require.NoError(t, err)
	applied, err := db.Update(ctx, []refs.Update{
		refs.DirectUpdate{Name: "refs/heads/main", Target: oid1, Previous: refs.MustNotExist(), Message: "init"},
		refs.SymbolicUpdate{Name: "HEAD", Target: refs.SymrefTarget{Name: "refs/heads/main", Target: oid2}, Previous: refs.Any()},
	})
	// HEAD's destination is also written by the first update.
	require.ErrorIs(t, err, refs.ErrDuplicateUpdate)
	require.Nil(t, applied)

	applied, err = db.Update(ctx, []refs.Update{
		refs.DirectUpdate{Name: "refs/heads/main", Target: oid1, Previous: refs.MustNotExist(), Message: "init"},
		refs.SymbolicUpdate{Name: "HEAD", Target: refs.SymrefTarget{Name: "refs/heads/main"}, Previous: refs.Any()},
	})
	require.NoError(t, err)
	require.Len(t, applied.Updated, 2)
	require.NoError(t, db.Close())

	db, err = refdb.Open(ctx, open(t, path), ff)
	require.NoError(t, err)
	defer db.Close()
	head, ok := db.FindReference("HEAD")
	require.True(t, ok)
	assert.Equal(t, refs.SymbolicTarget("refs/heads/main"), head.Target)
	reflog, err := db.Reflog(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Len(t, reflog, 1)
	assert.Equal(t, "init", reflog[0].Message)
	assert.NotEmpty(t, reflog[0].TxID)
}

type ancestry func(newOid, oldOid plumbing.Hash) bool

func (a ancestry) IsFastForward(_ context.Context, _ plumbing.ReferenceName, newOid, oldOid plumbing.Hash) (bool, error) {
	return a(newOid, oldOid), nil
}
