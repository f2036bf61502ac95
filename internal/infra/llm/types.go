// Package llm defines the model-agnostic reasoning provider abstraction used
// by the tool host. All types here are shared between the provider interface
// and adapters.
package llm

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string // provider specific, e.g. "stop", "end_turn", "max_tokens"
	Tokens     int    // Total tokens consumed (prompt + completion).
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string // e.g. "claude-3-5-sonnet-latest", "llama3.2:3b"
	Provider  string // e.g. "anthropic", "ollama"
	MaxTokens int    // Maximum completion size the adapter will request by default.
}
