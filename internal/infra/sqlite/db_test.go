package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/sqlite"
)

// TestNewDB_OpenAndClose verifies that NewDB opens a valid connection and Close works.
func TestNewDB_OpenAndClose(t *testing.T) {
	t.Parallel()

	path := tempDBPath(t)
	db, err := sqlite.NewDB(path)
	if err != nil {
		t.Fatalf("NewDB(%q) error = %v; want nil", path, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("db.Close() error = %v; want nil", err)
	}
}

func TestNewDB_WALMode(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode scan error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q; want %q", mode, "wal")
	}
}

func TestNewDB_InvalidDirectory(t *testing.T) {
	t.Parallel()

	_, err := sqlite.NewDB(filepath.Join(t.TempDir(), "missing", "x.db"))
	if err == nil {
		t.Fatal("NewDB() with missing parent directory: want error, got nil")
	}
}

func TestOpenReadOnly_MissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.db")
	_, err := sqlite.OpenReadOnly(context.Background(), path)
	if !errors.Is(err, sqlite.ErrStoreNotFound) {
		t.Fatalf("OpenReadOnly() error = %v; want ErrStoreNotFound", err)
	}

	// The missing file must not be created as a side effect.
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected store file to stay absent, stat err = %v", statErr)
	}
}

func TestOpenReadOnly_Directory(t *testing.T) {
	t.Parallel()

	if _, err := sqlite.OpenReadOnly(context.Background(), t.TempDir()); err == nil {
		t.Fatal("OpenReadOnly() on a directory: want error, got nil")
	}
}

func TestOpenReadOnly_ReadsAndRejectsWrites(t *testing.T) {
	t.Parallel()

	path := seededPath(t)
	db, err := sqlite.OpenReadOnly(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM vehicles").Scan(&n); err != nil {
		t.Fatalf("count vehicles: %v", err)
	}
	if n == 0 {
		t.Fatal("expected seeded vehicles, got 0 rows")
	}

	if _, err := db.Exec("DELETE FROM vehicles"); err == nil {
		t.Fatal("expected write through read-only handle to fail")
	}
}

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(tempDBPath(t))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func seededPath(t *testing.T) string {
	t.Helper()
	path := tempDBPath(t)
	if err := sqlite.SeedDemo(path); err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}
	return path
}
