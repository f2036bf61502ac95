package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	// ErrConnection means the channel to the host could not be established
	// or was lost.
	ErrConnection = errors.New("mcp connection error")
	// ErrProtocol means a response could not be correlated or decoded.
	ErrProtocol = errors.New("mcp protocol error")
	// ErrInvocation means a tool call was rejected or reported a failure.
	ErrInvocation = errors.New("mcp invocation error")

	ErrUnknownTool      = fmt.Errorf("%w: unknown tool", ErrInvocation)
	ErrInvalidArguments = fmt.Errorf("%w: invalid arguments", ErrInvocation)
)

// classifyCallError maps SDK call failures onto the package error kinds.
// Closed channels and cancelled contexts abort the pipeline as connection
// errors. A JSON-RPC error response is a correlated answer saying the remote
// call failed, so it is an invocation error. Anything else is a protocol error.
func classifyCallError(tool string, err error) error {
	var rpcErr *jsonrpc.Error
	switch {
	case errors.Is(err, sdkmcp.ErrConnectionClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: call %s: %w", ErrConnection, tool, err)
	case errors.As(err, &rpcErr):
		return fmt.Errorf("%w: call %s: %w", ErrInvocation, tool, err)
	default:
		return fmt.Errorf("%w: call %s: %w", ErrProtocol, tool, err)
	}
}
