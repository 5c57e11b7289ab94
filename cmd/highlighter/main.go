// Package main is the entry point for the highlighter CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/highlighter/internal/annotate"
	"github.com/dgallion1/highlighter/internal/chunker"
	"github.com/dgallion1/highlighter/internal/config"
	"github.com/dgallion1/highlighter/internal/extract"
	"github.com/dgallion1/highlighter/internal/parser"
	"github.com/dgallion1/highlighter/internal/pipeline"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "highlighter",
	Short: "Highlight the key sentences of research papers",
	Long: `highlighter reads a research paper PDF, asks a language model for the
sentences that carry its key points, and writes a copy of the PDF with a
highlight annotation over every occurrence of those sentences.

Use "run" for a single file, "serve" for the upload UI, and "mcp" to expose
the same operation as an MCP tool over stdio.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./highlighter.yaml or ~/.config/highlighter/highlighter.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "completion service: openai, anthropic, or ollama")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag(config.KeyLLMProvider, rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("highlighter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "highlighter"))
		}
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads and validates the merged configuration.
func loadConfig() (config.Config, error) {
	cfg := config.Load(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns a JSON logger for server modes and a text logger
// otherwise, both at the configured level.
func newLogger(cfg config.Config, w io.Writer, json bool) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app holds the wired pipeline and the pieces adapters report on.
type app struct {
	pipeline *pipeline.Pipeline
	points   *extract.PointExtractor
	close    func()
}

func buildApp(cfg config.Config, log *slog.Logger) (*app, error) {
	tok, err := chunker.NewTiktoken(cfg.TokenizerEncoding)
	if err != nil {
		return nil, err
	}
	completer, err := extract.NewCompleter(cfg.Provider())
	if err != nil {
		return nil, err
	}
	color, err := annotate.ParseColor(cfg.HighlightColor)
	if err != nil {
		return nil, err
	}

	pdf := &parser.PDFParser{
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
		StopAtReferences:  cfg.StopAtReferences,
	}
	chunks := chunker.New(tok)
	points := extract.NewPointExtractor(completer, nil, log)
	ann := annotate.New(log.With("component", "annotate"))
	ann.Color = color

	log.Debug("tokenizer loaded", "encoding", tok.Name(), "chunk_tokens", cfg.ChunkTokens)

	p := pipeline.New(pdf, chunks, points, ann, pipeline.Options{
		MaxTokens:     cfg.ChunkTokens,
		MaxRetries:    cfg.LLMMaxRetries,
		SkipMalformed: cfg.SkipMalformed,
	}, log.With("component", "pipeline"))

	closeFn := func() {}
	if c, ok := completer.(interface{ Close() }); ok {
		closeFn = c.Close
	}
	return &app{pipeline: p, points: points, close: closeFn}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
