// Package store persists registered users in a relational database. SQLite
// (github.com/mattn/go-sqlite3) is the default backend; PostgreSQL is reached
// through the pgx stdlib driver. The schema is managed by golang-migrate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite3"
	DriverPgx    = "pgx"
)

var (
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: record not found")
	// ErrUnsupportedDriver is returned by Open for unknown driver names.
	ErrUnsupportedDriver = errors.New("store: unsupported driver")
)

const (
	pingTimeout     = 5 * time.Second
	sqliteBusyMilli = "5000"
)

// Store is a user repository backed by database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, verifies the connection and applies any
// pending migrations.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPgx:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases alive and serialises writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if !isInMemorySQLite(driver, dsn) {
		// Recycling the only connection would drop an in-memory database.
		db.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	if err := migrateUp(db, driver, dsn); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", driver, err)
	}

	log.Printf("User store ready (driver %s)", driver)
	return &Store{db: db, driver: driver}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// rebind rewrites '?' placeholders into the numbered form PostgreSQL expects.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPgx {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn
	}

	params := url.Values{}
	params.Add("_busy_timeout", sqliteBusyMilli)
	params.Add("_journal_mode", "WAL")
	return "file:" + dsn + "?" + params.Encode()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isInMemorySQLite reports whether dsn names a SQLite database that lives
// only as long as its connection.
func isInMemorySQLite(driver, dsn string) bool {
	if driver != DriverSQLite {
		return false
	}
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
