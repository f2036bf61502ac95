// Package host exposes the tool registry over MCP.
package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/sqlagent/internal/domain/nl2sql"
	"github.com/matiasleandrokruk/sqlagent/internal/domain/tool"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/version"
	"github.com/matiasleandrokruk/sqlagent/pkg/jsonspan"
)

const instructions = "Answer questions about the vehicle store by calling entity-extraction, " +
	"query-builder, query-executor and answer-synthesis in that order, passing each result to the next call."

// Server wraps the MCP SDK server and binds every registry tool to it.
type Server struct {
	MCPServer *sdkmcp.Server

	registry *tool.ToolRegistry
	log      *slog.Logger
}

// NewServer creates an MCP server publishing every tool in registry. Tool
// handlers never call each other; each one only dispatches into the registry.
func NewServer(registry *tool.ToolRegistry) *Server {
	s := &Server{
		registry: registry,
		log:      logging.New("host"),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: version.Name, Version: version.Version},
		&sdkmcp.ServerOptions{Instructions: instructions, Logger: s.log},
	)
	for _, def := range registry.ListToolDefinitions() {
		s.bind(def)
	}
	return s
}

func (s *Server) bind(def tool.Definition) {
	t := &sdkmcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: def.InputSchema,
	}
	if def.OutputSchema != nil {
		t.OutputSchema = def.OutputSchema
	}
	s.MCPServer.AddTool(t, s.handler(def))
}

// handler converts registry results into MCP results. Validation and
// executor failures become isError results; structured tools also carry the
// object as a JSON text block for clients that ignore structuredContent.
func (s *Server) handler(def tool.Definition) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		start := time.Now()
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}

		out, err := s.registry.Execute(ctx, def.Name, args)
		if err != nil {
			s.log.Warn("tool call failed",
				slog.String("tool", def.Name),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("error", err.Error()),
			)
			return errorResult(err.Error()), nil
		}

		var res *sdkmcp.CallToolResult
		var marker bool
		switch def.Shape() {
		case tool.ShapeStructured:
			res = &sdkmcp.CallToolResult{
				Content:           []sdkmcp.Content{&sdkmcp.TextContent{Text: string(out)}},
				StructuredContent: out,
			}
			var obj map[string]any
			if json.Unmarshal(out, &obj) == nil {
				_, marker = nl2sql.Marker(obj)
			}
		default:
			var text string
			if err := json.Unmarshal(out, &text); err != nil {
				text = string(out)
			}
			res = &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}}}
			if obj, err := jsonspan.Object(text); err == nil {
				_, marker = nl2sql.Marker(obj)
			}
		}

		s.log.Info("tool call",
			slog.String("tool", def.Name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Bool("error_marker", marker),
		)
		return res, nil
	}
}

func errorResult(msg string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: msg}},
	}
}

// RunStdio serves MCP on stdin/stdout until ctx is cancelled, the client
// disconnects, or the parent process goes away.
func (s *Server) RunStdio(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	WatchParent(ctx, cancel, s.log)

	s.log.Info("serving MCP over stdio", slog.Int("tools", len(s.registry.ListToolDefinitions())))
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// HTTPHandler serves the streamable HTTP transport. Every request shares the
// same server and therefore the same tool set.
func (s *Server) HTTPHandler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.MCPServer
	}, nil)
}
