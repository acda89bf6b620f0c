package refdb_test

import (
	"context"
	"testing"

	"github.com/aviator-co/refdb/internal/objstore"
	"github.com/aviator-co/refdb/internal/objstore/objstoretest"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	mainRef  = plumbing.ReferenceName("refs/heads/main")
	otherRef = plumbing.ReferenceName("refs/heads/other")
	aliasRef = plumbing.ReferenceName("refs/aliases/current")
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	objects *objstoretest.Repo
	backend *refdb.MemoryBackend
	db      *refdb.DB
}

func newFixture(t *testing.T, initial []refs.Reference, opts ...refdb.Option) *fixture {
	t.Helper()
	objects := objstoretest.NewRepo(t)
	return newFixtureWithAncestry(t, objects, mustOracleFor(t, objects), initial, opts...)
}

func newFixtureWithAncestry(
	t *testing.T,
	objects *objstoretest.Repo,
	ancestry refdb.Ancestry,
	initial []refs.Reference,
	opts ...refdb.Option,
) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := refdb.NewMemoryBackend(initial...)
	db, err := refdb.Open(ctx, backend, ancestry, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &fixture{t: t, ctx: ctx, objects: objects, backend: backend, db: db}
}

// mustOracle returns an ancestry oracle over the object database of f.
func mustOracle(t *testing.T, f *fixture) *objstore.Oracle {
	t.Helper()
	return mustOracleFor(t, f.objects)
}

func mustOracleFor(t *testing.T, objects *objstoretest.Repo) *objstore.Oracle {
	t.Helper()
	oracle, err := objstore.NewOracle(objects.Store, 0)
	require.NoError(t, err)
	return oracle
}

func direct(name plumbing.ReferenceName, oid plumbing.Hash) refs.Reference {
	return refs.Reference{Name: name, Target: refs.DirectTarget(oid)}
}

func symbolic(name, target plumbing.ReferenceName) refs.Reference {
	return refs.Reference{Name: name, Target: refs.SymbolicTarget(target)}
}

// requireRef asserts that name currently points at the given target.
func (f *fixture) requireRef(name plumbing.ReferenceName, target refs.Target) {
	f.t.Helper()
	ref, ok := f.db.FindReference(name)
	require.True(f.t, ok, "reference %s should exist", name)
	require.Equal(f.t, target, ref.Target, "reference %s", name)
}

func (f *fixture) requireNoRef(name plumbing.ReferenceName) {
	f.t.Helper()
	_, ok := f.db.FindReference(name)
	require.False(f.t, ok, "reference %s should not exist", name)
}

func (f *fixture) update(updates ...refs.Update) (*refs.Applied, error) {
	return f.db.Update(f.ctx, updates)
}

type ancestryFunc func(ctx context.Context, name plumbing.ReferenceName, newOid, oldOid plumbing.Hash) (bool, error)

func (f ancestryFunc) IsFastForward(
	ctx context.Context,
	name plumbing.ReferenceName,
	newOid, oldOid plumbing.Hash,
) (bool, error) {
	return f(ctx, name, newOid, oldOid)
}
