package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/highlighter/internal/doctree"
)

// Completer sends one system + user exchange to a language model and returns
// the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// PointExtractor asks a Completer for the key sentences of each chunk.
type PointExtractor struct {
	completer Completer
	prompt    string
	Stats     *LLMStats
	log       *slog.Logger
}

func NewPointExtractor(c Completer, stats *LLMStats, log *slog.Logger) *PointExtractor {
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	return &PointExtractor{
		completer: c,
		prompt:    SystemPrompt,
		Stats:     stats,
		log:       log,
	}
}

// Model returns the model name of the underlying completer.
func (p *PointExtractor) Model() string {
	return p.completer.Model()
}

// Extract returns the sentences the model picked from chunk, in reply order.
// Service failures are returned as *ServiceError and unparseable replies as
// *ResponseParseError.
func (p *PointExtractor) Extract(ctx context.Context, chunk doctree.Chunk) ([]string, error) {
	start := time.Now()
	reply, err := p.completer.Complete(ctx, p.prompt, chunk.Text)
	elapsed := time.Since(start)
	if err != nil {
		p.Stats.Record(elapsed, OutcomeServiceError, 0)
		return nil, err
	}

	points, err := ParseList(reply)
	if err != nil {
		p.Stats.Record(elapsed, OutcomeParseError, 0)
		return nil, err
	}
	p.Stats.Record(elapsed, OutcomeOK, len(points))
	p.log.Debug("chunk points extracted",
		"chunk", chunk.Index,
		"points", len(points),
		"duration_ms", elapsed.Milliseconds(),
	)
	return points, nil
}
