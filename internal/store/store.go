package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/assetq/internal/schema"
)

const driverName = "sqlite3_assetq_ro"

var registerOnce sync.Once

// registerDriver installs a sqlite3 driver whose connections refuse writes
// regardless of the URI flags they were opened with.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(c *sqlite3.SQLiteConn) error {
				_, err := c.Exec("PRAGMA query_only = ON", nil)
				return err
			},
		})
	})
}

// Store is the read-only handle on an ingested database.
type Store struct {
	db     *sql.DB
	path   string
	tables []schema.Table
	roles  schema.Roles
}

// fileDSN builds a SQLite URI for path. The path is percent-escaped so that
// '?', '#' and '%' in a file name stay part of the name.
func fileDSN(path, query string) string {
	return "file:" + (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath() + "?" + query
}

// Open opens an existing database read-only and runs the schema-resolution
// pass over its tables.
//
// The database is configured with:
//   - mode=ro so the file is never created or modified
//   - query_only on every pooled connection
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	registerDriver()
	dsn := fileDSN(abs, "mode=ro&_busy_timeout=5000")

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Reads only, so a small pool serves concurrent handlers.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{db: db, path: abs}
	if err := s.loadSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the absolute path of the database file.
func (s *Store) Path() string {
	return s.path
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Roles returns the schema-resolution result computed at Open.
func (s *Store) Roles() schema.Roles {
	return s.roles
}

// Schema returns the cached table listing computed at Open.
func (s *Store) Schema() []schema.Table {
	return s.tables
}

// Describe renders the schema description handed to the oracle.
func (s *Store) Describe() string {
	return schema.Describe(s.tables)
}

func (s *Store) loadSchema(ctx context.Context) error {
	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	s.tables = tables
	s.roles = schema.Resolve(schema.ColumnsByTable(tables))
	return nil
}
