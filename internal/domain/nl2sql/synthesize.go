package nl2sql

import (
	"context"
	"fmt"
	"strings"
)

const synthesisSystem = "You are a helpful assistant. Answer questions using only the data provided."

// AnswerSynthesizer writes the final natural-language answer.
type AnswerSynthesizer struct {
	reasoner Reasoner
	model    string
}

func NewAnswerSynthesizer(reasoner Reasoner, model string) *AnswerSynthesizer {
	return &AnswerSynthesizer{reasoner: reasoner, model: model}
}

// Synthesize covers three result shapes. An empty data list is answered
// without the reasoner. Error markers and rows go to the reasoner; if it
// fails on an error marker the marker is explained deterministically.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, result map[string]any) string {
	msg, failed := Marker(result)
	if !failed && isEmptyData(result["data"]) {
		return NoDataAnswer(question)
	}

	resp, err := s.reasoner.ChatCompletion(ctx, userChat(s.model, synthesisSystem, buildSynthesisPrompt(question, result), SynthesisMaxTokens))
	if err != nil {
		if failed {
			return fmt.Sprintf("I could not answer %s because the data could not be retrieved: %s", quote(question), msg)
		}
		return fmt.Sprintf("Error formulating final answer: %v", err)
	}
	return strings.TrimSpace(resp.Content)
}

// NoDataAnswer is the answer given when the query returned no rows.
func NoDataAnswer(question string) string {
	return fmt.Sprintf("No matching data was found in the database for the question %s.", quote(question))
}

func isEmptyData(v any) bool {
	switch d := v.(type) {
	case nil:
		return true
	case []any:
		return len(d) == 0
	case []map[string]any:
		return len(d) == 0
	case []Row:
		return len(d) == 0
	default:
		return false
	}
}

func buildSynthesisPrompt(question string, result map[string]any) string {
	var b strings.Builder
	b.WriteString("Answer the user's question based on the data below.\n")
	b.WriteString("If the data contains an error, explain it in plain language. If the data is empty, say so.\n\n")
	b.WriteString("Original Question: ")
	b.WriteString(quote(question))
	b.WriteString("\nData from Database: ")
	b.WriteString(indentJSON(result))
	b.WriteString("\n")
	return b.String()
}
