// Package boltdb stores references in a bbolt database file.
//
// The file has three top-level buckets: "meta" holds the format version,
// "refs" maps reference names to their targets in loose ref format and
// "reflog" holds one nested bucket per reference whose keys are big-endian
// sequence numbers.
package boltdb

import (
	"context"
	"encoding/binary"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	bolt "go.etcd.io/bbolt"
)

// Version of the file format.
const Version = 1

var (
	metaBucket   = []byte("meta")
	refsBucket   = []byte("refs")
	reflogBucket = []byte("reflog")
	versionKey   = []byte("version")
)

var (
	ErrMissingMetaInfo = errors.Sentinel("missing meta information")
	ErrMissingVersion  = errors.Sentinel("missing version in meta information")
	ErrOldVersion      = errors.Sentinel("database file was created by an older version")
	ErrNewVersion      = errors.Sentinel("database file was created by a newer version")
)

type DB struct {
	b *bolt.DB
}

var _ refdb.Backend = (*DB)(nil)

// Open opens the database file at the given path, creating it if it does not
// exist. It fails if another process holds the file open for longer than
// timeout.
func Open(path string, timeout time.Duration) (*DB, error) {
	_, err := os.Stat(path)
	created := os.IsNotExist(err)

	b, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.WrapIff(err, "failed to open database %q", path)
	}

	err = b.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			if !created {
				return ErrMissingMetaInfo
			}
			bk, err := tx.CreateBucket(metaBucket)
			if err != nil {
				return err
			}
			if err := bk.Put(versionKey, versionBytes()); err != nil {
				return err
			}
		} else {
			vb := meta.Get(versionKey)
			if len(vb) != 4 {
				return ErrMissingVersion
			}
			switch v := int(binary.BigEndian.Uint32(vb)); {
			case v < Version:
				return ErrOldVersion
			case v > Version:
				return ErrNewVersion
			}
		}
		if _, err := tx.CreateBucketIfNotExists(refsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(reflogBucket)
		return err
	})
	if err != nil {
		_ = b.Close()
		return nil, errors.WrapIff(err, "failed to initialize database %q", path)
	}
	return &DB{b: b}, nil
}

func versionBytes() []byte {
	vb := make([]byte, 4)
	binary.BigEndian.PutUint32(vb, Version)
	return vb
}

func (d *DB) Load(context.Context) (map[plumbing.ReferenceName]refs.Target, error) {
	loaded := map[plumbing.ReferenceName]refs.Target{}
	err := d.b.View(func(tx *bolt.Tx) error {
		return tx.Bucket(refsBucket).ForEach(func(k, v []byte) error {
			target, err := refs.ParseTarget(string(v))
			if err != nil {
				return errors.WrapIff(err, "invalid target of %s", k)
			}
			loaded[plumbing.ReferenceName(k)] = target
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load references")
	}
	return loaded, nil
}

func (d *DB) Commit(ctx context.Context, changes []refdb.Change) error {
	err := d.b.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		refsBk := tx.Bucket(refsBucket)
		reflogBk := tx.Bucket(reflogBucket)
		for _, c := range changes {
			name := []byte(c.Name)
			var err error
			if c.Deleted() {
				err = refsBk.Delete(name)
			} else {
				err = refsBk.Put(name, []byte(c.Target.String()))
			}
			if err != nil {
				return errors.WrapIff(err, "failed to write %s", c.Name)
			}

			log, err := reflogBk.CreateBucketIfNotExists(name)
			if err != nil {
				return errors.WrapIff(err, "failed to create reflog of %s", c.Name)
			}
			seq, err := log.NextSequence()
			if err != nil {
				return err
			}
			if err := log.Put(seqKey(seq), encodeEntry(c.Reflog)); err != nil {
				return errors.WrapIff(err, "failed to append reflog entry of %s", c.Name)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to commit reference changes")
	}
	return nil
}

func (d *DB) Reflog(_ context.Context, name plumbing.ReferenceName) ([]refdb.ReflogEntry, error) {
	var entries []refdb.ReflogEntry
	err := d.b.View(func(tx *bolt.Tx) error {
		log := tx.Bucket(reflogBucket).Bucket([]byte(name))
		if log == nil {
			return nil
		}
		// Keys are big-endian, so the cursor visits entries in append order.
		c := log.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			e, err := decodeEntry(v)
			if err != nil {
				return errors.WrapIff(err, "invalid reflog entry %d of %s", binary.BigEndian.Uint64(k), name)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *DB) Close() error {
	return d.b.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
