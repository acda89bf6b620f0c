package objstoretest

import (
	"fmt"
	"testing"
	"time"

	"github.com/aviator-co/refdb/internal/objstore"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// Repo is an object database that tests can write commits into.
type Repo struct {
	t       testing.TB
	Storage storer.EncodedObjectStorer
	Store   *objstore.Store
	tree    plumbing.Hash
	when    time.Time
}

// NewRepo creates an empty in-memory object database.
func NewRepo(t testing.TB) *Repo {
	return NewRepoWithStorage(t, memory.NewStorage())
}

// NewRepoWithStorage writes objects into an existing storage, e.g. the storer
// of an on-disk repository.
func NewRepoWithStorage(t testing.TB, storage storer.EncodedObjectStorer) *Repo {
	r := &Repo{
		t:       t,
		Storage: storage,
		Store:   objstore.New(storage),
		when:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	r.tree = r.encode(&object.Tree{})
	return r
}

type encoder interface {
	Encode(plumbing.EncodedObject) error
}

func (r *Repo) encode(e encoder) plumbing.Hash {
	r.t.Helper()
	obj := r.Storage.NewEncodedObject()
	require.NoError(r.t, e.Encode(obj), "failed to encode object")
	h, err := r.Storage.SetEncodedObject(obj)
	require.NoError(r.t, err, "failed to store object")
	return h
}

func (r *Repo) signature() object.Signature {
	// Every commit gets a distinct timestamp so identical messages still
	// produce distinct objects.
	r.when = r.when.Add(time.Minute)
	return object.Signature{Name: "refdb-test", Email: "refdb-test@nonexistant", When: r.when}
}

// Commit writes a commit with an empty tree and the given parents.
func (r *Repo) Commit(message string, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()
	sig := r.signature()
	return r.encode(&object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     r.tree,
		ParentHashes: parents,
	})
}

// Chain writes n commits, each the child of the previous one, starting from
// parent (which may be the zero hash for a root commit).
func (r *Repo) Chain(parent plumbing.Hash, n int) []plumbing.Hash {
	r.t.Helper()
	commits := make([]plumbing.Hash, 0, n)
	for i := 0; i < n; i++ {
		var parents []plumbing.Hash
		if !parent.IsZero() {
			parents = append(parents, parent)
		}
		parent = r.Commit(fmt.Sprintf("commit %d", i), parents...)
		commits = append(commits, parent)
	}
	return commits
}

// Blob writes a blob with the given contents.
func (r *Repo) Blob(contents string) plumbing.Hash {
	r.t.Helper()
	obj := r.Storage.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	require.NoError(r.t, err)
	_, err = w.Write([]byte(contents))
	require.NoError(r.t, err)
	require.NoError(r.t, w.Close())
	h, err := r.Storage.SetEncodedObject(obj)
	require.NoError(r.t, err)
	return h
}

// Tree returns the empty tree every commit of this repo points at.
func (r *Repo) Tree() plumbing.Hash {
	return r.tree
}

// Tag writes an annotated tag pointing at the given commit.
func (r *Repo) Tag(name string, target plumbing.Hash) plumbing.Hash {
	r.t.Helper()
	return r.encode(&object.Tag{
		Name:       name,
		Tagger:     r.signature(),
		Message:    name,
		TargetType: plumbing.CommitObject,
		Target:     target,
	})
}
