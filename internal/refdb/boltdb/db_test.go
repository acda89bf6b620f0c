package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refdb/refdbtest"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func open(t *testing.T, path string) refdb.Backend {
	db, err := Open(path+".bolt", time.Second)
	require.NoError(t, err)
	return db
}

func TestBoltDB(t *testing.T) {
	refdbtest.TestBackend(t, open)
}

func TestBoltDB_EntryEncoding(t *testing.T) {
	for _, e := range []refdb.ReflogEntry{
		{Time: time.Unix(0, 0)},
		{
			Old:     plumbing.NewHash("1111111111111111111111111111111111111111"),
			New:     plumbing.NewHash("2222222222222222222222222222222222222222"),
			Message: "update: fast-forward\nwith a second line",
			Time:    time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC),
			TxID:    "0b8e2c43-5b5e-4f47-9f8b-0d1a1f7c5a10",
		},
	} {
		decoded, err := decodeEntry(encodeEntry(e))
		require.NoError(t, err)
		assert.Equal(t, e.Old, decoded.Old)
		assert.Equal(t, e.New, decoded.New)
		assert.Equal(t, e.Message, decoded.Message)
		assert.Equal(t, e.TxID, decoded.TxID)
		assert.Equal(t, e.Time.UnixNano(), decoded.Time.UnixNano())
	}

	_, err := decodeEntry(make([]byte, entryHeaderSize-1))
	assert.ErrorIs(t, err, ErrInvalidSize)

	truncated := encodeEntry(refdb.ReflogEntry{TxID: "abcdef"})
	_, err = decodeEntry(truncated[:entryHeaderSize+3])
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestBoltDB_Version(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bolt")
	db, err := Open(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, db.b.Update(func(tx *bolt.Tx) error {
		vb := versionBytes()
		vb[3]++
		return tx.Bucket(metaBucket).Put(versionKey, vb)
	}))
	require.NoError(t, db.Close())

	_, err = Open(path, time.Second)
	assert.ErrorIs(t, err, ErrNewVersion)
}

func TestBoltDB_MissingMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bolt")
	b, err := bolt.Open(path, 0o644, nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = Open(path, time.Second)
	assert.ErrorIs(t, err, ErrMissingMetaInfo)
}

func TestBoltDB_FailedCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bolt")
	oid := plumbing.NewHash("8b1a9953c4611296a827abf8c47804d7e6c49c6b")
	db, err := Open(path, time.Second)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = db.Commit(ctx, []refdb.Change{
		{Name: "refs/heads/main", Target: refs.DirectTarget(oid), Reflog: refdb.ReflogEntry{New: oid}},
	})
	require.ErrorIs(t, err, context.Canceled)

	loaded, err := db.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
