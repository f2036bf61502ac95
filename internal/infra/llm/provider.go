package llm

import "context"

// LLMProvider is the model-agnostic interface for the remote reasoning
// collaborator. Adapters (Anthropic, Ollama) implement it so tool handlers are
// never coupled to a specific vendor.
type LLMProvider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}
