package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/highlighter/internal/annotate"
	"github.com/dgallion1/highlighter/internal/doctree"
	"github.com/dgallion1/highlighter/internal/extract"
)

// Stage names a pipeline step.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StagePoints   Stage = "points"
	StageAnnotate Stage = "annotate"
)

// StageError reports the step that stopped a run. Chunk is the chunk index
// for StagePoints and -1 otherwise.
type StageError struct {
	Stage Stage
	Chunk int
	Err   error
}

func (e *StageError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%s chunk %d: %v", e.Stage, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TextExtractor returns the flattened text of a document.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// Splitter cuts text into token-bounded chunks.
type Splitter interface {
	SplitWithBudget(text string, maxTokens int) ([]doctree.Chunk, error)
}

// PointSource picks the key sentences of a chunk.
type PointSource interface {
	Extract(ctx context.Context, chunk doctree.Chunk) ([]string, error)
}

// Highlighter writes an annotated copy of a PDF.
type Highlighter interface {
	AnnotateProgress(ctx context.Context, src, dst string, sentences []string, onPage func(page, total int)) (*annotate.Result, error)
}

// Options tune a run.
type Options struct {
	MaxTokens     int  // chunk budget
	MaxRetries    int  // extra attempts for retryable service errors
	SkipMalformed bool // treat an unparseable reply as an empty list
}

// Event reports progress to presentation layers.
type Event struct {
	Stage       Stage
	Chunk       int
	TotalChunks int
	Page        int
	TotalPages  int
}

// ProgressFunc receives progress events. It must not block.
type ProgressFunc func(Event)

// Result describes a finished run.
type Result struct {
	Source        string           `json:"source" yaml:"source"`
	Output        string           `json:"output" yaml:"output"`
	Chunks        int              `json:"chunks" yaml:"chunks"`
	Sentences     []string         `json:"sentences" yaml:"sentences"`
	SentenceChunk []int            `json:"sentence_chunk" yaml:"sentence_chunk"` // chunk index per sentence
	SkippedChunks []int            `json:"skipped_chunks,omitempty" yaml:"skipped_chunks,omitempty"`
	Annotation    *annotate.Result `json:"annotation" yaml:"annotation"`
	Duration      time.Duration    `json:"duration" yaml:"duration"`
}

// Pipeline runs extract, chunk, points and annotate in sequence.
type Pipeline struct {
	extractor TextExtractor
	splitter  Splitter
	points    PointSource
	annotator Highlighter
	opts      Options
	log       *slog.Logger
	backoff   func(attempt int) time.Duration
}

func New(ex TextExtractor, sp Splitter, pts PointSource, hl Highlighter, opts Options, log *slog.Logger) *Pipeline {
	return &Pipeline{
		extractor: ex,
		splitter:  sp,
		points:    pts,
		annotator: hl,
		opts:      opts,
		log:       log,
		backoff:   Backoff,
	}
}

// Options returns the configured run options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run highlights src into dst using the configured options.
func (p *Pipeline) Run(ctx context.Context, src, dst string, progress ProgressFunc) (*Result, error) {
	return p.RunWith(ctx, src, dst, p.opts, progress)
}

// RunWith highlights src into dst. Stages run strictly in order and chunks
// are sent one at a time; the first failure stops the run with a
// *StageError and no output file.
func (p *Pipeline) RunWith(ctx context.Context, src, dst string, opts Options, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(Event) {}
	}
	start := time.Now()
	log := p.log.With("src", src)
	res := &Result{Source: src, Output: dst}

	progress(Event{Stage: StageExtract})
	text, err := p.extractor.ExtractText(src)
	if err != nil {
		log.Error("text extraction failed", "error", err)
		return nil, &StageError{Stage: StageExtract, Chunk: -1, Err: err}
	}
	log.Info("text extracted", "chars", len(text))

	progress(Event{Stage: StageChunk})
	chunks, err := p.splitter.SplitWithBudget(text, opts.MaxTokens)
	if err != nil {
		return nil, &StageError{Stage: StageChunk, Chunk: -1, Err: err}
	}
	res.Chunks = len(chunks)
	log.Info("text chunked", "chunks", len(chunks), "max_tokens", opts.MaxTokens)

	res.Sentences = []string{}
	res.SentenceChunk = []int{}
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: StagePoints, Chunk: chunk.Index, Err: err}
		}
		progress(Event{Stage: StagePoints, Chunk: chunk.Index + 1, TotalChunks: len(chunks)})

		points, err := p.extractWithRetry(ctx, log, chunk, opts.MaxRetries)
		if err != nil {
			var parseErr *extract.ResponseParseError
			if opts.SkipMalformed && errors.As(err, &parseErr) {
				log.Warn("skipping malformed reply", "chunk", chunk.Index, "error", err)
				res.SkippedChunks = append(res.SkippedChunks, chunk.Index)
				continue
			}
			log.Error("point extraction failed", "chunk", chunk.Index, "error", err)
			return nil, &StageError{Stage: StagePoints, Chunk: chunk.Index, Err: err}
		}
		for _, s := range points {
			res.Sentences = append(res.Sentences, s)
			res.SentenceChunk = append(res.SentenceChunk, chunk.Index)
		}
	}
	log.Info("points extracted", "sentences", len(res.Sentences), "skipped_chunks", len(res.SkippedChunks))

	progress(Event{Stage: StageAnnotate})
	onPage := func(page, total int) {
		progress(Event{Stage: StageAnnotate, Page: page, TotalPages: total})
	}
	ann, err := p.annotator.AnnotateProgress(ctx, src, dst, res.Sentences, onPage)
	if err != nil {
		log.Error("annotation failed", "error", err)
		return nil, &StageError{Stage: StageAnnotate, Chunk: -1, Err: err}
	}
	res.Annotation = ann

	for _, i := range ann.Unmatched() {
		log.Debug("sentence not found", "chunk", res.SentenceChunk[i], "sentence", res.Sentences[i])
	}
	res.Duration = time.Since(start)
	log.Info("run complete",
		"dst", dst,
		"highlights", ann.Highlights,
		"unmatched", len(ann.Unmatched()),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// DefaultSuffix is appended to the source name to form the output name.
const DefaultSuffix = "_highlighted"

// OutputPath returns <dir>/<name><suffix><ext> for src, with ext defaulting
// to ".pdf".
func OutputPath(src, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	dir, base := filepath.Split(src)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".pdf"
	}
	return filepath.Join(dir, name+suffix+ext)
}
