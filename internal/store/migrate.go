package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// migrateUp applies the embedded migrations for driver.
func migrateUp(db *sql.DB, driver, dsn string) error {
	src, err := iofs.New(migrationFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// The sqlite3 migrate driver closes the *sql.DB it wraps, and a
		// second handle would not see a ":memory:" database, so the shared
		// handle is used and the migrator is left open.
		target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("wrap sqlite3 handle: %w", err)
		}
		return runUp(src, driver, target)

	case DriverPgx:
		migrationDB, err := sql.Open(driver, dsn)
		if err != nil {
			return fmt.Errorf("open migration handle: %w", err)
		}
		target, err := migratepgx.WithInstance(migrationDB, &migratepgx.Config{})
		if err != nil {
			_ = migrationDB.Close()
			return fmt.Errorf("wrap pgx handle: %w", err)
		}
		defer func() { _ = target.Close() }()
		return runUp(src, driver, target)
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
}

func runUp(src source.Driver, driver string, target database.Driver) error {
	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
