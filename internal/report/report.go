// Package report summarizes a highlight run: which sentences the model
// picked, how often each was found, and which were never matched.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.yaml.in/yaml/v3"

	"github.com/dgallion1/highlighter/internal/pipeline"
)

// Entry is one extracted sentence.
type Entry struct {
	Sentence string `json:"sentence" yaml:"sentence"`
	Chunk    int    `json:"chunk" yaml:"chunk"`
	Matches  int    `json:"matches" yaml:"matches"`
}

// Report is the exportable summary of a run.
type Report struct {
	Source        string        `json:"source" yaml:"source"`
	Output        string        `json:"output" yaml:"output"`
	Model         string        `json:"model,omitempty" yaml:"model,omitempty"`
	Pages         int           `json:"pages" yaml:"pages"`
	Chunks        int           `json:"chunks" yaml:"chunks"`
	Highlights    int           `json:"highlights" yaml:"highlights"`
	Unmatched     int           `json:"unmatched" yaml:"unmatched"`
	SkippedChunks []int         `json:"skipped_chunks,omitempty" yaml:"skipped_chunks,omitempty"`
	Duration      time.Duration `json:"duration_ns" yaml:"duration"`
	Entries       []Entry       `json:"entries" yaml:"entries"`
}

// FromResult builds a report from a finished run.
func FromResult(res *pipeline.Result, model string) *Report {
	r := &Report{
		Source:        res.Source,
		Output:        res.Output,
		Model:         model,
		Chunks:        res.Chunks,
		SkippedChunks: res.SkippedChunks,
		Duration:      res.Duration,
		Entries:       make([]Entry, len(res.Sentences)),
	}
	if res.Annotation != nil {
		r.Pages = res.Annotation.Pages
		r.Highlights = res.Annotation.Highlights
	}
	for i, s := range res.Sentences {
		e := Entry{Sentence: s}
		if i < len(res.SentenceChunk) {
			e.Chunk = res.SentenceChunk[i]
		}
		if res.Annotation != nil && i < len(res.Annotation.Matches) {
			e.Matches = res.Annotation.Matches[i]
		}
		if e.Matches == 0 {
			r.Unmatched++
		}
		r.Entries[i] = e
	}
	return r
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Highlights for %s\n\n", mdEscape(filepath.Base(r.Source)))
	fmt.Fprintf(&sb, "- Output: `%s`\n", r.Output)
	if r.Model != "" {
		fmt.Fprintf(&sb, "- Model: %s\n", mdEscape(r.Model))
	}
	fmt.Fprintf(&sb, "- Pages: %d\n", r.Pages)
	fmt.Fprintf(&sb, "- Chunks: %d\n", r.Chunks)
	fmt.Fprintf(&sb, "- Sentences: %d\n", len(r.Entries))
	fmt.Fprintf(&sb, "- Highlights: %d\n", r.Highlights)
	fmt.Fprintf(&sb, "- Not found in the PDF: %d\n", r.Unmatched)
	if len(r.SkippedChunks) > 0 {
		fmt.Fprintf(&sb, "- Skipped chunks (unparseable reply): %v\n", r.SkippedChunks)
	}

	if len(r.Entries) > 0 {
		sb.WriteString("\n## Sentences\n\n")
		sb.WriteString("| # | Chunk | Matches | Sentence |\n")
		sb.WriteString("|---|-------|---------|----------|\n")
		for i, e := range r.Entries {
			fmt.Fprintf(&sb, "| %d | %d | %d | %s |\n", i+1, e.Chunk, e.Matches, mdEscape(e.Sentence))
		}
	}

	if r.Unmatched > 0 {
		sb.WriteString("\n## Not found\n\n")
		for _, e := range r.Entries {
			if e.Matches == 0 {
				fmt.Fprintf(&sb, "- %s\n", mdEscape(e.Sentence))
			}
		}
	}
	return sb.String()
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;", "\n", " ",
)

func mdEscape(s string) string {
	return mdEscaper.Replace(s)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the report as a standalone HTML page.
func (r *Report) HTML() ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(r.Markdown()), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Highlight report</title>\n")
	page.WriteString("<style>body{font-family:sans-serif;max-width:60em;margin:2em auto}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.3em .6em}</style>\n")
	page.WriteString("</head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

// YAML renders the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteFile writes the report in the format implied by the extension of
// path: .md, .html, .docx, .yaml/.yml or .json.
func (r *Report) WriteFile(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		data = []byte(r.Markdown())
	case ".html", ".htm":
		data, err = r.HTML()
	case ".docx":
		data, err = r.Docx()
	case ".yaml", ".yml":
		data, err = r.YAML()
	case ".json":
		data, err = r.JSON()
	default:
		return fmt.Errorf("unsupported report format: %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
