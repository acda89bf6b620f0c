package main

import (
	"context"
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/config"
	"github.com/aviator-co/refdb/internal/objstore"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refdb/boltdb"
	"github.com/aviator-co/refdb/internal/refdb/jsonfiledb"
	"github.com/aviator-co/refdb/internal/refdb/sqlitedb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/cleanup"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

const boltOpenTimeout = 5 * time.Second

func openBackend(cfg config.Refdb) (refdb.Backend, error) {
	path, err := config.StoragePath()
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"backend": cfg.Storage.Backend,
		"path":    path,
	}).Debug("opening reference database")
	switch cfg.Storage.Backend {
	case config.BackendJSON:
		return jsonfiledb.Open(path)
	case config.BackendSQLite:
		return sqlitedb.Open(path)
	case config.BackendBolt:
		return boltdb.Open(path, boltOpenTimeout)
	case config.BackendMemory:
		return refdb.NewMemoryBackend(), nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openDB opens the configured reference database. The returned function
// closes it.
func openDB(ctx context.Context, opts ...refdb.Option) (*refdb.DB, func(), error) {
	cfg := config.Current
	var cu cleanup.Cleanup
	defer cu.Cleanup()

	store, err := objstore.Open(cfg.Objects.Path)
	if err != nil {
		return nil, nil, err
	}
	oracle, err := objstore.NewOracle(store, cfg.Ancestry.CacheSize)
	if err != nil {
		return nil, nil, err
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	cu.Add(func() { _ = backend.Close() })

	opts = append([]refdb.Option{
		refdb.WithLockTimeout(cfg.Transaction.LockTimeout),
		refdb.WithHook(refdb.HookFunc(logHook)),
	}, opts...)
	if cfg.Transaction.SequentialDuplicates {
		opts = append(opts, refdb.WithSequentialDuplicates())
	}
	db, err := refdb.Open(ctx, backend, oracle, opts...)
	if err != nil {
		return nil, nil, err
	}
	cu.Cancel()
	return db, func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close reference database")
		}
	}, nil
}

func logHook(_ context.Context, phase refdb.Phase, tx refdb.TxInfo) error {
	log := logrus.WithFields(logrus.Fields{"tx": tx.ID, "phase": phase})
	for _, c := range tx.Changes {
		log.WithFields(logrus.Fields{
			"ref":    c.Name,
			"target": c.Target,
		}).Debug("reference transaction")
	}
	return nil
}

// applyUpdates runs a batch and prints its outcome. It returns errRejected if
// any update was rejected.
func applyUpdates(ctx context.Context, updates []refs.Update, opts ...refdb.Option) error {
	db, closeDB, err := openDB(ctx, opts...)
	if err != nil {
		return err
	}
	defer closeDB()

	applied, err := db.Update(ctx, updates)
	if err != nil {
		return err
	}
	fmt.Print(renderApplied(applied))
	if len(applied.Rejected) > 0 {
		return errRejected
	}
	return nil
}

const errRejected = errors.Sentinel("some updates were rejected")

func parseOidArg(s string) (plumbing.Hash, error) {
	oid, ok := refs.ParseOid(s)
	if !ok {
		return oid, errors.Errorf("invalid object ID %q", s)
	}
	return oid, nil
}
