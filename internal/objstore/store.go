package objstore

import (
	"context"
	"path"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"
)

// Store is a read-only view of a content-addressed git object database.
type Store struct {
	objects storer.EncodedObjectStorer
	log     logrus.FieldLogger
}

// New wraps an existing go-git object storage.
func New(objects storer.EncodedObjectStorer) *Store {
	return &Store{
		objects: objects,
		log:     logrus.WithField("component", "objstore"),
	}
}

// NewMemory returns a store backed by an empty in-memory object database.
func NewMemory() *Store {
	return New(memory.NewStorage())
}

// Open opens the object database of the git repository at (or above) dir.
func Open(dir string) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.WrapIff(err, "failed to open git repository %q", dir)
	}
	s := New(repo.Storer)
	s.log = s.log.WithField("repo", path.Base(dir))
	return s, nil
}

// Storer returns the underlying go-git object storage.
func (s *Store) Storer() storer.EncodedObjectStorer {
	return s.objects
}

// ObjectType returns the type of the given object. It returns
// plumbing.ErrObjectNotFound if the object does not exist.
func (s *Store) ObjectType(oid plumbing.Hash) (plumbing.ObjectType, error) {
	obj, err := s.objects.EncodedObject(plumbing.AnyObject, oid)
	if err != nil {
		return plumbing.InvalidObject, err
	}
	return obj.Type(), nil
}

// Descends returns true if oldOid is reachable from newOid (a commit is
// reachable from itself). Tags are not peeled: if either object is not a
// commit, or does not exist, the result is false.
func (s *Store) Descends(ctx context.Context, newOid, oldOid plumbing.Hash) (bool, error) {
	for _, oid := range []plumbing.Hash{newOid, oldOid} {
		typ, err := s.ObjectType(oid)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			s.log.WithField("oid", oid).Debug("object not found, assuming no ancestry")
			return false, nil
		} else if err != nil {
			return false, errors.WrapIff(err, "failed to read object %s", oid)
		}
		if typ != plumbing.CommitObject {
			s.log.WithFields(logrus.Fields{"oid": oid, "type": typ}).
				Debug("object is not a commit, assuming no ancestry")
			return false, nil
		}
	}
	if newOid == oldOid {
		return true, nil
	}

	head, err := object.GetCommit(s.objects, newOid)
	if err != nil {
		return false, errors.WrapIff(err, "failed to read commit %s", newOid)
	}
	found := false
	err = object.NewCommitPreorderIter(head, nil, nil).ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Hash == oldOid {
			found = true
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return false, errors.WrapIff(err, "failed to walk history of %s", newOid)
	}
	return found, nil
}
