// Package sqlitedb stores references in a SQLite database.
package sqlitedb

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refdb/sqlitedb/migrations"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

type DB struct {
	db  *sql.DB
	log logrus.FieldLogger
}

var _ refdb.Backend = (*DB)(nil)

// Open creates or opens the SQLite database at the given path and applies
// pending migrations.
//
// The database is configured with:
//   - WAL mode so readers of the file do not block the writer
//   - a 5-second busy timeout for lock contention with other processes
//   - a single connection, as SQLite only supports one writer at a time
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapIff(err, "failed to open database %q", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapIff(err, "failed to connect to database %q", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	n, err := Migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{"component": "sqlitedb", "path": path})
	if n > 0 {
		log.WithField("migrations", n).Debug("applied database migrations")
	}
	return &DB{db: db, log: log}, nil
}

// Migrate applies all pending migrations and returns how many were applied.
func Migrate(db *sql.DB) (int, error) {
	source := &migrate.MemoryMigrationSource{Migrations: migrations.All()}
	n, err := migrate.Exec(db, "sqlite3", source, migrate.Up)
	if err != nil {
		return 0, errors.Wrap(err, "failed to migrate database")
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.WrapIff(err, "failed to execute %q", pragma)
		}
	}
	return nil
}

func (d *DB) Load(ctx context.Context) (map[plumbing.ReferenceName]refs.Target, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name, target FROM refs")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query references")
	}
	defer rows.Close()

	loaded := map[plumbing.ReferenceName]refs.Target{}
	for rows.Next() {
		var name, text string
		if err := rows.Scan(&name, &text); err != nil {
			return nil, errors.Wrap(err, "failed to scan reference")
		}
		target, err := refs.ParseTarget(text)
		if err != nil {
			return nil, errors.WrapIff(err, "invalid target of %s", name)
		}
		loaded[plumbing.ReferenceName(name)] = target
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to query references")
	}
	return loaded, nil
}

func (d *DB) Commit(ctx context.Context, changes []refdb.Change) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	// No-op once the transaction has been committed.
	defer func() { _ = tx.Rollback() }()

	for _, c := range changes {
		if c.Deleted() {
			_, err = tx.ExecContext(ctx, "DELETE FROM refs WHERE name = ?", c.Name.String())
		} else {
			_, err = tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO refs (name, target) VALUES (?, ?)",
				c.Name.String(), c.Target.String(),
			)
		}
		if err != nil {
			return errors.WrapIff(err, "failed to write %s", c.Name)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reflog (name, old_oid, new_oid, message, created_at, tx_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.Name.String(),
			c.Reflog.Old.String(),
			c.Reflog.New.String(),
			c.Reflog.Message,
			c.Reflog.Time.UnixNano(),
			c.Reflog.TxID,
		)
		if err != nil {
			return errors.WrapIff(err, "failed to append reflog entry of %s", c.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	d.log.WithField("changes", len(changes)).Debug("committed reference changes")
	return nil
}

func (d *DB) Reflog(ctx context.Context, name plumbing.ReferenceName) ([]refdb.ReflogEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT old_oid, new_oid, message, created_at, tx_id FROM reflog
		WHERE name = ? ORDER BY id`,
		name.String(),
	)
	if err != nil {
		return nil, errors.WrapIff(err, "failed to query reflog of %s", name)
	}
	defer rows.Close()

	var entries []refdb.ReflogEntry
	for rows.Next() {
		var (
			old, n, message, txID string
			createdAt             int64
		)
		if err := rows.Scan(&old, &n, &message, &createdAt, &txID); err != nil {
			return nil, errors.WrapIff(err, "failed to scan reflog entry of %s", name)
		}
		oldOid, ok := refs.ParseOid(old)
		if !ok {
			return nil, errors.Errorf("invalid old oid %q in reflog of %s", old, name)
		}
		newOid, ok := refs.ParseOid(n)
		if !ok {
			return nil, errors.Errorf("invalid new oid %q in reflog of %s", n, name)
		}
		entries = append(entries, refdb.ReflogEntry{
			Old:     oldOid,
			New:     newOid,
			Message: message,
			Time:    time.Unix(0, createdAt).UTC(),
			TxID:    txID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIff(err, "failed to query reflog of %s", name)
	}
	return entries, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
