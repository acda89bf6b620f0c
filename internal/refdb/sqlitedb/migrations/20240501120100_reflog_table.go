package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &migrate.Migration{
		Id: "20240501120100_reflog_table",
		Up: []string{
			`CREATE TABLE reflog (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				old_oid TEXT NOT NULL,
				new_oid TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				tx_id TEXT NOT NULL DEFAULT ''
			)`,
			"CREATE INDEX reflog_name_idx ON reflog (name, id)",
		},
		Down: []string{
			"DROP INDEX reflog_name_idx",
			"DROP TABLE reflog",
		},
	}

	allMigrations = append(allMigrations, m)
}
