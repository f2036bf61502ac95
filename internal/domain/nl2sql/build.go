package nl2sql

import (
	"context"
	"strings"
)

const queryBuilderSystem = "You are an expert SQLite developer. Reply with a single JSON object and nothing else."

// QueryBuilder asks the reasoner for one SQLite statement answering the
// question. The result is text that should contain {"sql_query": "..."}.
type QueryBuilder struct {
	reasoner Reasoner
	model    string
}

func NewQueryBuilder(reasoner Reasoner, model string) *QueryBuilder {
	return &QueryBuilder{reasoner: reasoner, model: model}
}

// Build returns the reasoner's reply verbatim. Entities that already carry an
// error marker are forwarded as a new marker without calling the reasoner.
func (b *QueryBuilder) Build(ctx context.Context, question string, entities map[string]any) string {
	if msg, failed := Marker(entities); failed {
		return errorMarkerText("Cannot build query: entity extraction failed: %s", msg)
	}

	resp, err := b.reasoner.ChatCompletion(ctx, userChat(b.model, queryBuilderSystem, buildQueryPrompt(question, entities), QueryMaxTokens))
	if err != nil {
		return errorMarkerText("LLM Error in query-builder: %v", err)
	}
	return resp.Content
}

func buildQueryPrompt(question string, entities map[string]any) string {
	var b strings.Builder
	b.WriteString("Create a single, valid SQLite query that answers the user's question.\n")
	b.WriteString("Use the extracted entities as a guide.\n\n")
	b.WriteString("Original Question: ")
	b.WriteString(quote(question))
	b.WriteString("\nExtracted Entities: ")
	b.WriteString(indentJSON(entities))
	b.WriteString("\n\nYour output MUST be a single JSON object with one key: \"sql_query\".\n")
	return b.String()
}
