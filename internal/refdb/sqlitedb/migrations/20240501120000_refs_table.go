package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &migrate.Migration{
		Id: "20240501120000_refs_table",
		Up: []string{
			`CREATE TABLE refs (
				name TEXT PRIMARY KEY,
				target TEXT NOT NULL
			)`,
		},
		Down: []string{"DROP TABLE refs"},
	}

	allMigrations = append(allMigrations, m)
}
