package extract

import (
	"fmt"
	"time"
)

// Provider names accepted by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ProviderConfig selects and configures a completion service.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string // OpenAI base URL or Ollama host
	Timeout  time.Duration
}

// NewCompleter returns the Completer for cfg.Provider.
func NewCompleter(cfg ProviderConfig) (Completer, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil
	case ProviderAnthropic:
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
