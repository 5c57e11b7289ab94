package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient calls a local Ollama server through langchaingo.
type OllamaClient struct {
	llm   llms.Model
	model string
}

func NewOllamaClient(host, model string) (*OllamaClient, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if host != "" {
		opts = append(opts, ollama.WithServerURL(host))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &OllamaClient{llm: llm, model: model}, nil
}

func (c *OllamaClient) Model() string { return c.model }

func (c *OllamaClient) Complete(ctx context.Context, system, user string) (string, error) {
	completion, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	})
	if err != nil {
		return "", &ServiceError{Provider: "ollama", Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &ServiceError{Provider: "ollama", Err: errors.New("no choices in response")}
	}
	return completion.Choices[0].Content, nil
}
