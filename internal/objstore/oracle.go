package objstore

import (
	"context"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of ancestry results an Oracle remembers.
const DefaultCacheSize = 4096

type ancestryKey struct {
	new, old plumbing.Hash
}

// Oracle answers fast-forward questions from the commit graph of a Store.
// Commits are immutable, so every answer is cached.
type Oracle struct {
	descends func(ctx context.Context, newOid, oldOid plumbing.Hash) (bool, error)
	cache    *lru.Cache[ancestryKey, bool]
	group    singleflight.Group
	log      logrus.FieldLogger
}

// NewOracle returns an Oracle that caches up to cacheSize results. A
// non-positive size selects DefaultCacheSize.
func NewOracle(store *Store, cacheSize int) (*Oracle, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[ancestryKey, bool](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ancestry cache")
	}
	return &Oracle{
		descends: store.Descends,
		cache:    cache,
		log:      logrus.WithField("component", "ancestry"),
	}, nil
}

// IsFastForward returns true if moving the reference name from oldOid to
// newOid is a fast-forward. Creating a reference (oldOid is zero) is always a
// fast-forward. Otherwise both objects must be commits, even if they are
// equal.
func (o *Oracle) IsFastForward(
	ctx context.Context,
	name plumbing.ReferenceName,
	newOid, oldOid plumbing.Hash,
) (bool, error) {
	if oldOid.IsZero() {
		return true, nil
	}
	key := ancestryKey{newOid, oldOid}
	if ff, ok := o.cache.Get(key); ok {
		return ff, nil
	}
	// The walk is shared by every caller asking about the same pair, so it
	// runs detached from any one caller's context. Each caller stops waiting
	// when its own context is done.
	walk := context.WithoutCancel(ctx)
	ch := o.group.DoChan(newOid.String()+".."+oldOid.String(), func() (interface{}, error) {
		return o.descends(walk, newOid, oldOid)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return false, errors.WrapIff(ctx.Err(), "gave up waiting for ancestry of %s", name)
	case res = <-ch:
	}
	if res.Err != nil {
		return false, res.Err
	}
	ff := res.Val.(bool)
	o.cache.Add(key, ff)
	o.log.WithFields(logrus.Fields{
		"ref": name,
		"old": oldOid,
		"new": newOid,
		"ff":  ff,
	}).Debug("computed fast-forward status")
	return ff, nil
}
