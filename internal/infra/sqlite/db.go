// Package sqlite provides SQLite connection factories for the query store.
// Uses modernc.org/sqlite: a pure-Go SQLite driver (no CGO required).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

// ErrStoreNotFound is returned by OpenReadOnly when the store file does not exist.
var ErrStoreNotFound = errors.New("sqlite store not found")

// NewDB opens (or creates) a writable SQLite database at path. It is used to
// build stores (seed-demo, tests); the tool host itself only reads.
//   - WAL journal mode
//   - Foreign key enforcement
//   - 5-second busy timeout
//
// Use ":memory:" as path for in-memory databases in tests.
// Returns an error if the parent directory does not exist (will not create it).
func NewDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("sqlite.NewDB: parent directory %q does not exist", dir)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewDB: open %q: %w", path, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.NewDB: ping %q: %w", path, err)
	}

	return db, nil
}

// OpenReadOnly opens an existing store file for a single query. The handle
// uses one connection, mode=ro and query_only so that no statement can write,
// and the caller is expected to Close it once rows are fetched.
func OpenReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("sqlite.OpenReadOnly: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("sqlite.OpenReadOnly: %q is a directory", path)
	}

	u := url.URL{Scheme: "file", OmitHost: true, Path: path}
	q := url.Values{}
	q.Set("mode", "ro")
	u.RawQuery = q.Encode() + "&_pragma=query_only(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite.OpenReadOnly: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.OpenReadOnly: ping %q: %w", path, err)
	}
	return db, nil
}
