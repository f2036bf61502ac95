package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/sqlite"
	"github.com/matiasleandrokruk/sqlagent/pkg/jsonspan"
)

var (
	// ErrExecution marks failures raised while running a statement against
	// the store. It never crosses the tool boundary: Run turns it into an
	// {"error", "data": []} marker.
	ErrExecution          = errors.New("database query failed")
	ErrMultipleStatements = errors.New("only a single SQL statement may be executed")
	ErrEmptyStatement     = errors.New("empty SQL statement")
)

// Row is one result row; keys keep the column order of the query.
type Row = *orderedmap.OrderedMap[string, any]

// ResultSet is the query-executor artifact.
type ResultSet struct {
	Data  []Row  `json:"data"`
	Error string `json:"error,omitempty"`
}

func failedResult(format string, args ...any) ResultSet {
	return ResultSet{Data: []Row{}, Error: fmt.Sprintf(format, args...)}
}

// QueryRunner executes generated statements against a read-only SQLite file.
// Each call opens and closes its own connection.
type QueryRunner struct {
	dbPath string
}

func NewQueryRunner(dbPath string) *QueryRunner {
	return &QueryRunner{dbPath: dbPath}
}

// Run parses query-spec text and executes its sql_query. Guards run in a
// fixed order: locate JSON, prior error marker, missing sql_query, execute.
// Running the same spec twice against an unchanged store yields equal results.
func (q *QueryRunner) Run(ctx context.Context, specText string) ResultSet {
	spec, err := jsonspan.Object(specText)
	if err != nil {
		return failedResult("Database query failed: %v", err)
	}
	if msg, failed := Marker(spec); failed {
		return failedResult("Cannot execute due to previous error: %s", msg)
	}
	stmt, _ := spec["sql_query"].(string)
	if strings.TrimSpace(stmt) == "" {
		return failedResult("No SQL query provided.")
	}

	rows, err := q.Query(ctx, stmt)
	if err != nil {
		return failedResult("Database query failed: %s", strings.TrimPrefix(err.Error(), ErrExecution.Error()+": "))
	}
	return ResultSet{Data: rows}
}

// Query runs exactly one statement and returns every row. Errors wrap
// ErrExecution.
func (q *QueryRunner) Query(ctx context.Context, stmt string) ([]Row, error) {
	stmt, err := singleStatement(stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	db, err := sqlite.OpenReadOnly(ctx, q.dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecution, err)
		}

		row := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(cols)))
		for i, col := range cols {
			row.Set(col, normalizeValue(values[i]))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// singleStatement trims stmt and rejects input holding more than one
// statement. Semicolons inside quotes or comments are ignored; one trailing
// semicolon is allowed.
func singleStatement(stmt string) (string, error) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return "", ErrEmptyStatement
	}

	var quote rune
	end := -1
	runes := []rune(stmt)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && (runes[i] != '*' || runes[i+1] != '/') {
				i++
			}
			i++
		case c == ';':
			if end >= 0 {
				return "", ErrMultipleStatements
			}
			end = i
		default:
			if end >= 0 && !isSpace(c) {
				return "", ErrMultipleStatements
			}
		}
	}

	if end >= 0 {
		stmt = strings.TrimSpace(string(runes[:end]))
	}
	if stmt == "" {
		return "", ErrEmptyStatement
	}
	return stmt, nil
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
