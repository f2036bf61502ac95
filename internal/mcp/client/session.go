// Package client connects to a tool host over MCP, discovers its tools and
// invokes them one call at a time.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/version"
)

// ResultShape is how a tool declares its result should be read.
type ResultShape string

const (
	ShapeStructured ResultShape = "structured"
	ShapeText       ResultShape = "text"
)

// Descriptor is the client view of one discovered tool. It is built once at
// connect time and never changes afterwards.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Shape       ResultShape
}

// Result is the decoded outcome of one call. Data is set for structured
// tools, Text for text tools.
type Result struct {
	Shape ResultShape
	Data  map[string]any
	Text  string
}

// Target says where the tool host lives. Exactly one of Command, Endpoint
// or Transport is used, in that order of precedence.
type Target struct {
	// Command spawns the host as a child process speaking MCP on stdio.
	Command string
	Args    []string
	// Env is appended to the current environment of the child.
	Env []string
	Dir string

	// Endpoint dials a streamable HTTP host.
	Endpoint    string
	BearerToken string

	// Transport is used as-is; tests pass in-memory transports here.
	Transport sdkmcp.Transport
}

type options struct {
	httpClient        *http.Client
	terminateDuration time.Duration
	logger            *slog.Logger
}

// Option customises Connect.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for Endpoint targets.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTerminateDuration bounds how long Close waits for a child process to
// exit after its stdin is closed before it is terminated.
func WithTerminateDuration(d time.Duration) Option {
	return func(o *options) { o.terminateDuration = d }
}

// WithLogger overrides the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Session owns one MCP client session and the tool catalog discovered on it.
type Session struct {
	cs      *sdkmcp.ClientSession
	catalog map[string]Descriptor
	log     *slog.Logger

	closeOnce sync.Once
	closeErr  error
	mu        sync.RWMutex
	closed    bool
}

// Connect starts the channel, runs the initialize handshake, checks that the
// host offers tools and loads the catalog. Every failure wraps ErrConnection
// and releases whatever was already opened.
func Connect(ctx context.Context, target Target, opts ...Option) (*Session, error) {
	o := options{logger: logging.New("mcp-client")}
	for _, opt := range opts {
		opt(&o)
	}

	transport, err := target.transport(o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	c := sdkmcp.NewClient(&sdkmcp.Implementation{Name: version.Name + "-client", Version: version.Version}, nil)
	cs, err := c.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: handshake: %w", ErrConnection, err)
	}

	s := &Session{cs: cs, log: o.logger}
	if init := cs.InitializeResult(); init == nil || init.Capabilities == nil || init.Capabilities.Tools == nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: host does not advertise the tools capability", ErrConnection)
	}

	catalog, err := loadCatalog(ctx, cs)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: list tools: %w", ErrConnection, err)
	}
	s.catalog = catalog

	s.log.Debug("connected to tool host", slog.Int("tools", len(catalog)))
	return s, nil
}

func (t Target) transport(o options) (sdkmcp.Transport, error) {
	switch {
	case t.Command != "":
		cmd := exec.Command(t.Command, t.Args...)
		cmd.Env = append(os.Environ(), t.Env...)
		cmd.Dir = t.Dir
		cmd.Stderr = os.Stderr
		return &sdkmcp.CommandTransport{Command: cmd, TerminateDuration: o.terminateDuration}, nil
	case t.Endpoint != "":
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		if t.BearerToken != "" {
			httpClient = withBearer(httpClient, t.BearerToken)
		}
		return &sdkmcp.StreamableClientTransport{Endpoint: t.Endpoint, HTTPClient: httpClient, MaxRetries: -1}, nil
	case t.Transport != nil:
		return t.Transport, nil
	default:
		return nil, errors.New("target has no command, endpoint or transport")
	}
}

func loadCatalog(ctx context.Context, cs *sdkmcp.ClientSession) (map[string]Descriptor, error) {
	catalog := make(map[string]Descriptor)
	params := &sdkmcp.ListToolsParams{}
	for {
		res, err := cs.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			catalog[t.Name] = describe(t)
		}
		if res.NextCursor == "" {
			return catalog, nil
		}
		params = &sdkmcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

func describe(t *sdkmcp.Tool) Descriptor {
	d := Descriptor{Name: t.Name, Description: t.Description, Shape: ShapeText}
	if schema, ok := t.InputSchema.(map[string]any); ok {
		d.InputSchema = schema
	}
	if t.OutputSchema != nil {
		d.Shape = ShapeStructured
	}
	return d
}

// ListTools returns the catalog ordered by name.
func (s *Session) ListTools() []Descriptor {
	out := make([]Descriptor, 0, len(s.catalog))
	for _, d := range s.catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tool looks up one descriptor.
func (s *Session) Tool(name string) (Descriptor, bool) {
	d, ok := s.catalog[name]
	return d, ok
}

// Invoke makes exactly one tools/call round trip. args must marshal to a
// JSON object.
func (s *Session) Invoke(ctx context.Context, name string, args any) (Result, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return Result{}, fmt.Errorf("%w: session closed", ErrConnection)
	}

	d, ok := s.catalog[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	payload, err := toObject(args)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}
	if err := validateAgainstMinimalSchema(payload, d.InputSchema); err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}

	start := time.Now()
	res, err := s.cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: payload})
	if err != nil {
		return Result{}, classifyCallError(name, err)
	}
	s.log.Debug("tool call", slog.String("tool", name), slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if res.IsError {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrInvocation, name, firstText(res))
	}
	return decodeResult(d, res)
}

func decodeResult(d Descriptor, res *sdkmcp.CallToolResult) (Result, error) {
	if d.Shape == ShapeText {
		return Result{Shape: ShapeText, Text: firstText(res)}, nil
	}

	var data map[string]any
	switch sc := res.StructuredContent.(type) {
	case map[string]any:
		data = sc
	case nil:
		text := strings.TrimSpace(firstText(res))
		if text == "" {
			return Result{}, fmt.Errorf("%w: %s: empty structured result", ErrProtocol, d.Name)
		}
		if err := json.Unmarshal([]byte(text), &data); err != nil || data == nil {
			return Result{}, fmt.Errorf("%w: %s: result is not a JSON object", ErrProtocol, d.Name)
		}
	default:
		return Result{}, fmt.Errorf("%w: %s: structured content is %T, not an object", ErrProtocol, d.Name, sc)
	}
	return Result{Shape: ShapeStructured, Data: data}, nil
}

func firstText(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func toObject(args any) (map[string]any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	if m, ok := args.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return out, nil
}

// Close ends the MCP session. For command targets this closes the child's
// stdin and waits for it to exit, terminating it after a grace period. Close
// is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.cs.Close()
	})
	return s.closeErr
}
