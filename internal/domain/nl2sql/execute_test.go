package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRunner_Run_ReturnsRows(t *testing.T) {
	t.Parallel()

	q := NewQueryRunner(seededStore(t))
	rs := q.Run(context.Background(), "Here you go:\n{\"sql_query\": \"SELECT MAX(base_msrp) AS max_msrp FROM vehicles WHERE county = 'King'\"}\n")

	require.Empty(t, rs.Error)
	require.Len(t, rs.Data, 1)
	v, ok := rs.Data[0].Get("max_msrp")
	require.True(t, ok)
	assert.EqualValues(t, 84999, v)
}

func TestQueryRunner_Run_PreservesColumnOrder(t *testing.T) {
	t.Parallel()

	q := NewQueryRunner(seededStore(t))
	rs := q.Run(context.Background(), `{"sql_query":"SELECT model, make, base_msrp FROM vehicles WHERE vin = '5YJSA1E26H'"}`)
	require.Empty(t, rs.Error)

	raw, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"model":"MODEL S","make":"TESLA","base_msrp":84999}]}`, string(raw))
	assert.Contains(t, string(raw), `{"model":"MODEL S","make":"TESLA","base_msrp":84999}`)
}

func TestQueryRunner_Run_Idempotent(t *testing.T) {
	t.Parallel()

	q := NewQueryRunner(seededStore(t))
	spec := `{"sql_query":"SELECT county, COUNT(*) AS n FROM vehicles GROUP BY county ORDER BY county"}`

	first, err := json.Marshal(q.Run(context.Background(), spec))
	require.NoError(t, err)
	second, err := json.Marshal(q.Run(context.Background(), spec))
	require.NoError(t, err)

	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("repeated runs differ (-first +second):\n%s", diff)
	}
}

func TestQueryRunner_Run_EmptyResultKeepsDataList(t *testing.T) {
	t.Parallel()

	q := NewQueryRunner(seededStore(t))
	rs := q.Run(context.Background(), `{"sql_query":"SELECT * FROM vehicles WHERE county = 'Nowhere'"}`)
	require.Empty(t, rs.Error)

	raw, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(raw))
}

func TestQueryRunner_Run_Guards(t *testing.T) {
	t.Parallel()

	store := seededStore(t)
	tests := []struct {
		name       string
		spec       string
		wantPrefix string
	}{
		{name: "prior error", spec: `{"error":"LLM Error in query-builder: quota"}`, wantPrefix: "Cannot execute due to previous error: LLM Error in query-builder: quota"},
		{name: "prior error wins over query", spec: `{"error":"X","sql_query":"SELECT 1"}`, wantPrefix: "Cannot execute due to previous error: X"},
		{name: "missing query", spec: `{"table":"vehicles"}`, wantPrefix: "No SQL query provided."},
		{name: "blank query", spec: `{"sql_query":"   "}`, wantPrefix: "No SQL query provided."},
		{name: "no json", spec: "SELECT 1", wantPrefix: "Database query failed: "},
		{name: "unknown table", spec: `{"sql_query":"SELECT * FROM trucks"}`, wantPrefix: "Database query failed: "},
		{name: "two statements", spec: `{"sql_query":"SELECT 1; SELECT 2"}`, wantPrefix: "Database query failed: only a single SQL statement"},
		{name: "write rejected", spec: `{"sql_query":"DELETE FROM vehicles"}`, wantPrefix: "Database query failed: "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rs := NewQueryRunner(store).Run(context.Background(), tc.spec)
			assert.True(t, strings.HasPrefix(rs.Error, tc.wantPrefix), "error = %q", rs.Error)
			assert.NotNil(t, rs.Data)
			assert.Empty(t, rs.Data)
		})
	}

	rows, err := NewQueryRunner(store).Query(context.Background(), "SELECT COUNT(*) AS n FROM vehicles")
	require.NoError(t, err)
	n, _ := rows[0].Get("n")
	assert.EqualValues(t, 8, n, "store must be untouched by rejected writes")
}

func TestQueryRunner_Run_MissingStore(t *testing.T) {
	t.Parallel()

	rs := NewQueryRunner(filepath.Join(t.TempDir(), "missing.db")).Run(context.Background(), `{"sql_query":"SELECT 1"}`)
	assert.True(t, strings.HasPrefix(rs.Error, "Database query failed: "), rs.Error)
	assert.Contains(t, rs.Error, "not found")

	raw, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":[]`)
}

func TestQueryRunner_Query_WrapsErrExecution(t *testing.T) {
	t.Parallel()

	_, err := NewQueryRunner(seededStore(t)).Query(context.Background(), "SELECT nope FROM vehicles")
	assert.True(t, errors.Is(err, ErrExecution))
}

func TestSingleStatement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "SELECT 1", want: "SELECT 1"},
		{in: "  SELECT 1;  \n", want: "SELECT 1"},
		{in: "SELECT ';' AS semi", want: "SELECT ';' AS semi"},
		{in: `SELECT "a;b" FROM t;`, want: `SELECT "a;b" FROM t`},
		{in: "SELECT 1 -- trailing; comment", want: "SELECT 1 -- trailing; comment"},
		{in: "SELECT 1; /* done */", want: "SELECT 1"},
		{in: "SELECT 1; DROP TABLE vehicles", wantErr: ErrMultipleStatements},
		{in: "SELECT 1;;", wantErr: ErrMultipleStatements},
		{in: "", wantErr: ErrEmptyStatement},
		{in: " ; ", wantErr: ErrEmptyStatement},
	}

	for _, tc := range tests {
		got, err := singleStatement(tc.in)
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
