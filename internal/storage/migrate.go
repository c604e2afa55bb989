package storage

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigratePostgres applies every pending up migration to the database at connStr.
func MigratePostgres(connStr string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, connStr)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// applySchema runs the embedded up migrations in order. It is used for
// SQLite, whose in-memory databases live only as long as the connection.
func applySchema(db *sqlx.DB) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		script, err := migrationFiles.ReadFile(name)
		if err != nil {
			return err
		}
		for _, stmt := range splitStatements(string(script)) {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("%s: %w", strings.TrimPrefix(name, "migrations/"), err)
			}
		}
	}
	return nil
}
