package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider defines the interface for chat-completion backends. Every
// pipeline stage that talks to a model goes through this interface so tests
// can swap in mocks and deployments can switch providers by configuration.
type Provider interface {
	// Name returns the provider name
	Name() string

	// GenerateJSON asks the model for a single JSON object matching the
	// schema described in the prompt. The returned text is the raw model
	// output; callers parse it with ExtractJSON.
	GenerateJSON(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Embedder defines the interface for embedding backends. Kept separate from
// Provider because not every chat backend exposes an embedding endpoint.
type Embedder interface {
	Name() string

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Request contains the input for one JSON generation call.
type Request struct {
	// System sets the system prompt (provider-specific placement).
	System string

	// Prompt is the user-turn content. It must describe the expected JSON
	// schema; providers do not add schema constraints themselves.
	Prompt string

	// Model overrides the configured model when non-empty.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls sampling. Classification and clarification use
	// low values for consistency.
	Temperature float32
}

// Response contains the model's output.
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests, seconds
	Timeout int

	// MaxTokens default for response generation
	MaxTokens int

	// Dimension of embedding vectors (embedders only)
	Dimension int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ExtractJSON cleans raw model output into a parseable JSON document.
// Models wrap JSON in markdown fences or prose despite instructions, so
// strip fences and cut to the outermost object.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return s[start : end+1], nil
}
