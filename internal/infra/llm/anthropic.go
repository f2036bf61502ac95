package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var ErrMissingAPIKey = errors.New("anthropic: missing API key")

// DefaultAnthropicMaxTokens is used when ChatRequest.MaxTokens is zero.
const DefaultAnthropicMaxTokens = 1024

// AnthropicProvider implements LLMProvider with the official Anthropic SDK.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider builds a provider for model. Extra request options
// (base URL, HTTP client, retries) are appended after the defaults.
func NewAnthropicProvider(apiKey, model string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("anthropic: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(2 * time.Minute),
	}
	sdkOpts = append(sdkOpts, opts...)

	return &AnthropicProvider{
		client: anthropic.NewClient(sdkOpts...),
		model:  model,
	}, nil
}

// ChatCompletion sends one Messages API request. System messages are lifted
// into the request's system prompt; the rest keep their order.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}

	var system []string
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(msgs) == 0 {
		return nil, errors.New("anthropic chat: no user or assistant messages")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: strings.Join(system, "\n\n")},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	result, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	var content strings.Builder
	for _, block := range result.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	return &ChatResponse{
		Content:    content.String(),
		StopReason: string(result.StopReason),
		Tokens:     int(result.Usage.InputTokens + result.Usage.OutputTokens),
	}, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *AnthropicProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.model,
		Provider:  "anthropic",
		MaxTokens: DefaultAnthropicMaxTokens,
	}
}

// HealthCheck only verifies local configuration; probing the API would spend tokens.
func (p *AnthropicProvider) HealthCheck(_ context.Context) error {
	if p == nil {
		return ErrMissingAPIKey
	}
	return nil
}
