package nl2sql

import (
	"context"
	"strings"

	"github.com/matiasleandrokruk/sqlagent/pkg/jsonspan"
)

const extractionSystem = "You are a data analyst who extracts query entities from questions. Reply with a single raw JSON object."

// EntityExtractor turns a question into {table, columns_to_select, filters}.
type EntityExtractor struct {
	reasoner Reasoner
	dictPath string
	model    string
}

// NewEntityExtractor builds an extractor. An empty model uses the reasoner's
// default.
func NewEntityExtractor(reasoner Reasoner, dictPath, model string) *EntityExtractor {
	return &EntityExtractor{reasoner: reasoner, dictPath: dictPath, model: model}
}

// Extract never fails; on any error it returns {"error": "..."}.
// The data dictionary is read on every call so edits take effect without a
// restart.
func (e *EntityExtractor) Extract(ctx context.Context, question string) map[string]any {
	prompt := buildExtractionPrompt(question, DescribeDictionary(e.dictPath))
	resp, err := e.reasoner.ChatCompletion(ctx, userChat(e.model, extractionSystem, prompt, ExtractionMaxTokens))
	if err != nil {
		return errorMarker("Error in entity-extraction: %v", err)
	}

	entities, err := jsonspan.Object(resp.Content)
	if err != nil {
		return errorMarker("Error in entity-extraction: %v", err)
	}
	return entities
}

func buildExtractionPrompt(question, dictionary string) string {
	var b strings.Builder
	b.WriteString("Extract the key entities needed to answer the user's question.\n")
	b.WriteString("Use the data dictionary below to map business terms to columns.\n\n")
	b.WriteString("Data Dictionary:\n")
	b.WriteString(dictionary)
	b.WriteString("\n\nUser Question: ")
	b.WriteString(quote(question))
	b.WriteString("\n\nYour output MUST be a single JSON object with the keys \"table\", \"columns_to_select\" and \"filters\".\n")
	return b.String()
}
