package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL points at a local Ollama server's OpenAI-compatible API.
const DefaultBaseURL = "http://localhost:11434/v1/"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns a backend for baseURL. An empty apiKey is allowed for
// servers that do not check it.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete sends prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai complete: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm: openai complete: empty response")
	}
	return completion.Choices[0].Message.Content, nil
}
