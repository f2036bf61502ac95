package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/sqlagent/internal/domain/tool"
	"github.com/matiasleandrokruk/sqlagent/internal/mcp/client"
	"github.com/matiasleandrokruk/sqlagent/internal/mcp/host"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

type questionInput struct {
	Question string `json:"question"`
}

type countingExecutor struct {
	calls int
	fn    func(params json.RawMessage) (json.RawMessage, error)
}

func (c *countingExecutor) Execute(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	c.calls++
	return c.fn(params)
}

type fixture struct {
	session    *client.Session
	server     *sdkmcp.ServerSession
	structured *countingExecutor
	text       *countingExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	in, err := tool.SchemaFor[questionInput]()
	require.NoError(t, err)

	f := &fixture{
		structured: &countingExecutor{fn: func(params json.RawMessage) (json.RawMessage, error) {
			var q questionInput
			_ = json.Unmarshal(params, &q)
			return json.Marshal(map[string]any{"table": "vehicles", "question": q.Question})
		}},
		text: &countingExecutor{fn: func(json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(`{"sql_query":"SELECT 1"}`)
		}},
	}
	failing := &countingExecutor{fn: func(json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("store exploded")
	}}

	r := tool.NewToolRegistry()
	require.NoError(t, r.Register(tool.Definition{Name: "extract", InputSchema: in, OutputSchema: &jsonschema.Schema{Type: "object"}}, f.structured))
	require.NoError(t, r.Register(tool.Definition{Name: "build", InputSchema: in}, f.text))
	require.NoError(t, r.Register(tool.Definition{Name: "broken", InputSchema: in}, failing))

	ctx := context.Background()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	f.server, err = host.NewServer(r).MCPServer.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.server.Close() })

	f.session, err = client.Connect(ctx, client.Target{Transport: t2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.session.Close() })
	return f
}

func TestConnect_Catalog(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tools := f.session.ListTools()
	require.Len(t, tools, 3)
	assert.Equal(t, "broken", tools[0].Name)
	assert.Equal(t, "build", tools[1].Name)
	assert.Equal(t, "extract", tools[2].Name)

	d, ok := f.session.Tool("extract")
	require.True(t, ok)
	assert.Equal(t, client.ShapeStructured, d.Shape)
	assert.Equal(t, []any{"question"}, d.InputSchema["required"])

	d, ok = f.session.Tool("build")
	require.True(t, ok)
	assert.Equal(t, client.ShapeText, d.Shape)

	_, ok = f.session.Tool("nope")
	assert.False(t, ok)
}

func TestInvoke_Structured(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.session.Invoke(context.Background(), "extract", map[string]any{"question": "q1"})
	require.NoError(t, err)
	assert.Equal(t, client.ShapeStructured, res.Shape)
	assert.Equal(t, map[string]any{"table": "vehicles", "question": "q1"}, res.Data)
	assert.Equal(t, 1, f.structured.calls)
}

func TestInvoke_StructArgs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.session.Invoke(context.Background(), "extract", questionInput{Question: "q2"})
	require.NoError(t, err)
	assert.Equal(t, "q2", res.Data["question"])
}

func TestInvoke_Text(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.session.Invoke(context.Background(), "build", map[string]any{"question": "q"})
	require.NoError(t, err)
	assert.Equal(t, client.ShapeText, res.Shape)
	assert.Equal(t, `{"sql_query":"SELECT 1"}`, res.Text)
	assert.Nil(t, res.Data)
}

func TestInvoke_UnknownTool(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.session.Invoke(context.Background(), "delete-everything", nil)
	assert.ErrorIs(t, err, client.ErrUnknownTool)
	assert.ErrorIs(t, err, client.ErrInvocation)
}

func TestInvoke_InvalidArgumentsNeverSent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.Invoke(ctx, "extract", map[string]any{})
	assert.ErrorIs(t, err, client.ErrInvalidArguments)

	_, err = f.session.Invoke(ctx, "extract", map[string]any{"question": "q", "extra": 1})
	assert.ErrorIs(t, err, client.ErrInvalidArguments)

	_, err = f.session.Invoke(ctx, "extract", []string{"not", "an", "object"})
	assert.ErrorIs(t, err, client.ErrInvalidArguments)
	assert.ErrorIs(t, err, client.ErrInvocation)

	assert.Zero(t, f.structured.calls)
}

func TestInvoke_ToolError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.session.Invoke(context.Background(), "broken", map[string]any{"question": "q"})
	assert.ErrorIs(t, err, client.ErrInvocation)
	assert.Contains(t, err.Error(), "store exploded")
}

func TestInvoke_RemoteErrorResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "raw", Version: "v0"}, nil)
	obj := &jsonschema.Schema{Type: "object"}
	srv.AddTool(&sdkmcp.Tool{Name: "boom", InputSchema: obj}, func(context.Context, *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		return nil, errors.New("remote handler failed")
	})
	srv.AddTool(&sdkmcp.Tool{Name: "gone", InputSchema: obj}, func(context.Context, *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "ok"}}}, nil
	})

	t1, t2 := sdkmcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	session, err := client.Connect(ctx, client.Target{Transport: t2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	_, err = session.Invoke(ctx, "boom", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrInvocation)
	assert.NotErrorIs(t, err, client.ErrProtocol)
	assert.Contains(t, err.Error(), "remote handler failed")

	// The catalog still lists the tool; the host answers with an error response.
	srv.RemoveTools("gone")
	_, err = session.Invoke(ctx, "gone", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrInvocation)
	assert.NotErrorIs(t, err, client.ErrProtocol)
}

func TestInvoke_AfterServerGone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.server.Close())
	_ = f.server.Wait()

	_, err := f.session.Invoke(context.Background(), "extract", map[string]any{"question": "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrConnection)
}

func TestInvoke_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.session.Invoke(ctx, "extract", map[string]any{"question": "q"})
	assert.ErrorIs(t, err, client.ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.session.Close()
	assert.Equal(t, first, f.session.Close())

	_, err := f.session.Invoke(context.Background(), "extract", map[string]any{"question": "q"})
	assert.ErrorIs(t, err, client.ErrConnection)
}

func TestConnect_HostWithoutTools(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "empty", Version: "v0"}, nil)
	t1, t2 := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	_, err = client.Connect(ctx, client.Target{Transport: t2})
	assert.ErrorIs(t, err, client.ErrConnection)
}

func TestConnect_BadTargets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := client.Connect(ctx, client.Target{})
	assert.ErrorIs(t, err, client.ErrConnection)

	_, err = client.Connect(ctx, client.Target{Command: filepath.Join(t.TempDir(), "no-such-binary")})
	assert.ErrorIs(t, err, client.ErrConnection)
}
