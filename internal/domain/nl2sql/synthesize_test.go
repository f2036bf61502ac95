package nl2sql

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerSynthesizer_EmptyData(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{reply: "should not be used"}
	got := NewAnswerSynthesizer(r, "").Synthesize(context.Background(), "max msrp in Nowhere?", map[string]any{"data": []any{}})

	assert.Zero(t, r.calls())
	assert.Contains(t, strings.ToLower(got), "no matching data")
	assert.Equal(t, NoDataAnswer("max msrp in Nowhere?"), got)
}

func TestAnswerSynthesizer_Rows(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{reply: "  The maximum base MSRP in King county is 84999.\n"}
	result := map[string]any{"data": []any{map[string]any{"max_msrp": float64(84999)}}}
	got := NewAnswerSynthesizer(r, "synth-model").Synthesize(context.Background(), "What is the maximum base MSRP in King county?", result)

	assert.Equal(t, "The maximum base MSRP in King county is 84999.", got)
	require.Equal(t, 1, r.calls())
	assert.Equal(t, "synth-model", r.requests[0].Model)
	assert.Equal(t, SynthesisMaxTokens, r.requests[0].MaxTokens)
	assert.Contains(t, r.lastPrompt(t), `"max_msrp": 84999`)
}

func TestAnswerSynthesizer_ErrorMarkerGoesToReasoner(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{reply: "The database could not be opened, so I cannot answer."}
	result := map[string]any{"error": "Database query failed: sqlite store not found", "data": []any{}}
	got := NewAnswerSynthesizer(r, "").Synthesize(context.Background(), "q", result)

	assert.Equal(t, "The database could not be opened, so I cannot answer.", got)
	assert.Contains(t, r.lastPrompt(t), "sqlite store not found")
}

func TestAnswerSynthesizer_ReasonerFailure(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{err: errUpstream}

	withMarker := NewAnswerSynthesizer(r, "").Synthesize(context.Background(), "q",
		map[string]any{"error": "No SQL query provided.", "data": []any{}})
	assert.Contains(t, withMarker, "No SQL query provided.")
	assert.False(t, strings.HasPrefix(withMarker, "Error formulating final answer"))

	withRows := NewAnswerSynthesizer(r, "").Synthesize(context.Background(), "q",
		map[string]any{"data": []any{map[string]any{"n": float64(1)}}})
	assert.True(t, strings.HasPrefix(withRows, "Error formulating final answer: "), withRows)
}
