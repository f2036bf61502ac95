// Schema steps for demo and test stores. Each step is an embedded
// migrations/NNN_name.up.sql file; the highest applied NNN is kept in the
// database header (PRAGMA user_version), so a built store holds nothing but
// the vehicles table.
package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// ErrBadSchemaStep reports an embedded step whose file name carries no usable level.
var ErrBadSchemaStep = errors.New("sqlite: bad schema step")

type schemaStep struct {
	level int
	name  string
	body  string
}

// ApplySchema runs every embedded step above the store's current level, one
// transaction per step, and returns the names it applied.
func ApplySchema(ctx context.Context, db *sql.DB) ([]string, error) {
	steps, err := readSteps(migrations)
	if err != nil {
		return nil, err
	}
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, s := range steps {
		if s.level <= current {
			continue
		}
		if err := runStep(ctx, db, s); err != nil {
			return applied, fmt.Errorf("schema step %s: %w", s.name, err)
		}
		applied = append(applied, s.name)
	}
	return applied, nil
}

// SchemaVersion reports the level of the last applied step; 0 for a fresh store.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var level int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&level); err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return level, nil
}

// SeedDemo creates (or upgrades) a demo store at path with the bundled
// vehicles schema and sample rows. The file is left in rollback-journal mode
// so read-only handles can open it without creating WAL side files.
func SeedDemo(path string) error {
	db, err := NewDB(path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := ApplySchema(ctx, db); err != nil {
		return fmt.Errorf("seed demo: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("seed demo: leave WAL mode: %w", err)
	}
	return nil
}

// readSteps lists migrations/*.up.sql in fsys ordered by level. Names must
// start with a positive number followed by an underscore, and no two files
// may share a level.
func readSteps(fsys fs.FS) ([]schemaStep, error) {
	paths, err := fs.Glob(fsys, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema steps: %w", err)
	}

	steps := make([]schemaStep, 0, len(paths))
	for _, p := range paths {
		name := path.Base(p)
		prefix, _, ok := strings.Cut(name, "_")
		level, convErr := strconv.Atoi(prefix)
		if !ok || convErr != nil || level <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrBadSchemaStep, name)
		}
		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read schema step %s: %w", name, err)
		}
		steps = append(steps, schemaStep{level: level, name: name, body: string(body)})
	}

	slices.SortFunc(steps, func(a, b schemaStep) int { return cmp.Compare(a.level, b.level) })
	for i := 1; i < len(steps); i++ {
		if steps[i].level == steps[i-1].level {
			return nil, fmt.Errorf("%w: %s and %s share level %d", ErrBadSchemaStep, steps[i-1].name, steps[i].name, steps[i].level)
		}
	}
	return steps, nil
}

// runStep executes the step body and bumps user_version in the same
// transaction; the header write rolls back with the body on failure.
func runStep(ctx context.Context, db *sql.DB, s schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, s.body); err != nil {
		return err
	}
	// PRAGMA takes no bound parameters; level is an int parsed from the file name.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.level)); err != nil {
		return fmt.Errorf("set level: %w", err)
	}
	return tx.Commit()
}
