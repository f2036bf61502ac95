// Package nl2sql implements the four question-answering steps served by the
// tool host: entity extraction, query building, query execution and answer
// synthesis. Every step turns its own failures into an error marker instead
// of returning a Go error, so a caller always gets a well-formed artifact.
package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/llm"
)

// Token limits per reasoning step.
const (
	ExtractionMaxTokens = 1024
	QueryMaxTokens      = 1024
	SynthesisMaxTokens  = 2048
)

// Reasoner is the text-completion collaborator behind three of the steps.
// llm.LLMProvider satisfies it.
type Reasoner interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Inputs accepted by each step. Field tags drive the published input schemas.
type (
	ExtractionInput struct {
		Question string `json:"question" jsonschema:"the natural-language question to analyse"`
	}

	BuildInput struct {
		Question string         `json:"question" jsonschema:"the original natural-language question"`
		Entities map[string]any `json:"entities" jsonschema:"the mapping returned by entity-extraction"`
	}

	ExecuteInput struct {
		QuerySpecText string `json:"query_spec_text" jsonschema:"text containing a JSON object with a sql_query key"`
	}

	SynthesisInput struct {
		Question string         `json:"question" jsonschema:"the original natural-language question"`
		Result   map[string]any `json:"result" jsonschema:"the mapping returned by query-executor"`
	}
)

// MarkerKey is the key under which every step reports a recoverable failure.
const MarkerKey = "error"

// Marker returns the error text carried by an artifact, if any. Empty
// strings, null and empty containers count as no error.
func Marker(artifact map[string]any) (string, bool) {
	v, ok := artifact[MarkerKey]
	if !ok {
		return "", false
	}
	switch e := v.(type) {
	case nil:
		return "", false
	case string:
		return e, e != ""
	case bool:
		return "true", e
	case float64:
		return fmt.Sprint(e), e != 0
	case []any:
		if len(e) == 0 {
			return "", false
		}
	case map[string]any:
		if len(e) == 0 {
			return "", false
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return string(raw), true
}

func errorMarker(format string, args ...any) map[string]any {
	return map[string]any{MarkerKey: fmt.Sprintf(format, args...)}
}

// errorMarkerText renders an error marker as JSON text, for steps whose
// result shape is text.
func errorMarkerText(format string, args ...any) string {
	raw, err := json.Marshal(errorMarker(format, args...))
	if err != nil {
		return `{"error":"marshal error marker"}`
	}
	return string(raw)
}

func indentJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func userChat(model, system, prompt string, maxTokens int) llm.ChatRequest {
	return llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
