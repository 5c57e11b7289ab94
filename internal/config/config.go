package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgallion1/highlighter/internal/annotate"
	"github.com/dgallion1/highlighter/internal/extract"
)

type Config struct {
	Port string

	// Auth for the HTTP API; empty disables it.
	APIKey string

	// Completion service
	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	OllamaHost      string
	OllamaModel     string
	LLMTimeout      time.Duration
	LLMMaxRetries   int

	// Chunking
	ChunkTokens       int
	TokenizerEncoding string

	// Extraction and output
	StopAtReferences     bool
	PDFFallbackPdftotext bool
	SkipMalformed        bool
	OutputSuffix         string
	HighlightColor       string

	// Server
	MaxUploadBytes int64
	MaxQueueSize   int
	JobTTL         time.Duration
	WorkDir        string

	LogLevel string
}

// Keys are the environment variable names; viper matches them
// case-insensitively, so they double as YAML keys.
const (
	KeyPort                 = "PORT"
	KeyAPIKey               = "HIGHLIGHTER_API_KEY"
	KeyLLMProvider          = "LLM_PROVIDER"
	KeyAnthropicAPIKey      = "ANTHROPIC_API_KEY"
	KeyAnthropicModel       = "ANTHROPIC_MODEL"
	KeyOpenAIAPIKey         = "OPENAI_API_KEY"
	KeyOpenAIModel          = "OPENAI_MODEL"
	KeyOpenAIBaseURL        = "OPENAI_BASE_URL"
	KeyOllamaHost           = "OLLAMA_HOST"
	KeyOllamaModel          = "OLLAMA_MODEL"
	KeyLLMTimeout           = "LLM_TIMEOUT"
	KeyLLMMaxRetries        = "LLM_MAX_RETRIES"
	KeyChunkTokens          = "CHUNK_TOKENS"
	KeyTokenizerEncoding    = "TOKENIZER_ENCODING"
	KeyStopAtReferences     = "STOP_AT_REFERENCES"
	KeyPDFFallbackPdftotext = "PDF_FALLBACK_PDFTOTEXT"
	KeySkipMalformed        = "SKIP_MALFORMED_CHUNKS"
	KeyOutputSuffix         = "OUTPUT_SUFFIX"
	KeyHighlightColor       = "HIGHLIGHT_COLOR"
	KeyMaxUploadBytes       = "MAX_UPLOAD_BYTES"
	KeyMaxQueueSize         = "MAX_QUEUE_SIZE"
	KeyJobTTL               = "JOB_TTL"
	KeyWorkDir              = "WORK_DIR"
	KeyLogLevel             = "LOG_LEVEL"
)

// SetDefaults registers default values and environment lookup on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8090")
	v.SetDefault(KeyLLMProvider, extract.ProviderOpenAI)
	v.SetDefault(KeyAnthropicModel, "claude-sonnet-4-5-20250929")
	v.SetDefault(KeyOpenAIModel, extract.DefaultOpenAIModel)
	v.SetDefault(KeyOllamaHost, "http://localhost:11434")
	v.SetDefault(KeyOllamaModel, "llama3")
	v.SetDefault(KeyLLMTimeout, 120*time.Second)
	v.SetDefault(KeyLLMMaxRetries, 0)
	v.SetDefault(KeyChunkTokens, 3500)
	v.SetDefault(KeyTokenizerEncoding, "r50k_base")
	v.SetDefault(KeyStopAtReferences, true)
	v.SetDefault(KeyPDFFallbackPdftotext, true)
	v.SetDefault(KeySkipMalformed, false)
	v.SetDefault(KeyOutputSuffix, "_highlighted")
	v.SetDefault(KeyHighlightColor, "#ffff00")
	v.SetDefault(KeyMaxUploadBytes, int64(52428800)) // 50MB
	v.SetDefault(KeyMaxQueueSize, 100)
	v.SetDefault(KeyJobTTL, time.Hour)
	v.SetDefault(KeyWorkDir, "")
	v.SetDefault(KeyLogLevel, "info")

	// Explicit binds so keys without a default still read the environment.
	for _, k := range []string{KeyAPIKey, KeyAnthropicAPIKey, KeyOpenAIAPIKey, KeyOpenAIBaseURL} {
		_ = v.BindEnv(k)
	}
	v.AutomaticEnv()
}

// Load builds a Config from v. Call SetDefaults first.
func Load(v *viper.Viper) Config {
	cfg := Config{
		Port:   v.GetString(KeyPort),
		APIKey: v.GetString(KeyAPIKey),

		LLMProvider:     strings.ToLower(v.GetString(KeyLLMProvider)),
		AnthropicAPIKey: v.GetString(KeyAnthropicAPIKey),
		AnthropicModel:  v.GetString(KeyAnthropicModel),
		OpenAIAPIKey:    v.GetString(KeyOpenAIAPIKey),
		OpenAIModel:     v.GetString(KeyOpenAIModel),
		OpenAIBaseURL:   v.GetString(KeyOpenAIBaseURL),
		OllamaHost:      v.GetString(KeyOllamaHost),
		OllamaModel:     v.GetString(KeyOllamaModel),
		LLMTimeout:      v.GetDuration(KeyLLMTimeout),
		LLMMaxRetries:   v.GetInt(KeyLLMMaxRetries),

		ChunkTokens:       v.GetInt(KeyChunkTokens),
		TokenizerEncoding: v.GetString(KeyTokenizerEncoding),

		StopAtReferences:     v.GetBool(KeyStopAtReferences),
		PDFFallbackPdftotext: v.GetBool(KeyPDFFallbackPdftotext),
		SkipMalformed:        v.GetBool(KeySkipMalformed),
		OutputSuffix:         v.GetString(KeyOutputSuffix),
		HighlightColor:       v.GetString(KeyHighlightColor),

		MaxUploadBytes: v.GetInt64(KeyMaxUploadBytes),
		MaxQueueSize:   v.GetInt(KeyMaxQueueSize),
		JobTTL:         v.GetDuration(KeyJobTTL),
		WorkDir:        v.GetString(KeyWorkDir),

		LogLevel: v.GetString(KeyLogLevel),
	}

	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case extract.ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("%s is required", KeyOpenAIAPIKey)
		}
	case extract.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%s is required", KeyAnthropicAPIKey)
		}
	case extract.ProviderOllama:
		if c.OllamaModel == "" {
			return fmt.Errorf("%s is required", KeyOllamaModel)
		}
	default:
		return fmt.Errorf("%s must be one of openai, anthropic, ollama; got %q", KeyLLMProvider, c.LLMProvider)
	}
	if c.ChunkTokens <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyChunkTokens, c.ChunkTokens)
	}
	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyLLMMaxRetries, c.LLMMaxRetries)
	}
	if _, err := annotate.ParseColor(c.HighlightColor); err != nil {
		return fmt.Errorf("%s: %w", KeyHighlightColor, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return nil
}

// Provider returns the completion service settings for the selected provider.
func (c Config) Provider() extract.ProviderConfig {
	pc := extract.ProviderConfig{Provider: c.LLMProvider, Timeout: c.LLMTimeout}
	switch c.LLMProvider {
	case extract.ProviderAnthropic:
		pc.APIKey, pc.Model = c.AnthropicAPIKey, c.AnthropicModel
	case extract.ProviderOllama:
		pc.Model, pc.BaseURL = c.OllamaModel, c.OllamaHost
	default:
		pc.APIKey, pc.Model, pc.BaseURL = c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL
	}
	return pc
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}
