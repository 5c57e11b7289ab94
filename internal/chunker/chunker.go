package chunker

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/dgallion1/highlighter/internal/doctree"
)

// Chunker splits text into token-bounded chunks with one tokenizer.
type Chunker struct {
	tok Tokenizer
}

func New(tok Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// SplitWithBudget partitions text into chunks of at most maxTokens tokens.
func (c *Chunker) SplitWithBudget(text string, maxTokens int) ([]doctree.Chunk, error) {
	return Split(c.tok, text, maxTokens)
}

// Split tokenizes text once and cuts the token sequence into consecutive,
// non-overlapping windows of at most maxTokens tokens, decoding each window
// back to text. Boundaries fall on token boundaries, so a sentence may span
// two chunks. The concatenated Tokens of all chunks equal tok.Encode(text).
//
// Empty text yields zero chunks.
func Split(tok Tokenizer, text string, maxTokens int) ([]doctree.Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunk budget must be positive, got %d", maxTokens)
	}

	chunks := []doctree.Chunk{}
	if text == "" {
		return chunks, nil
	}

	tokens := tok.Encode(text)
	for start := 0; start < len(tokens); {
		end := min(start+maxTokens, len(tokens))
		window, decoded := fitWindow(tok, tokens[start:end], maxTokens)
		chunks = append(chunks, doctree.Chunk{
			Index:  len(chunks),
			Text:   decoded,
			Tokens: slices.Clone(window),
		})
		start += len(window)
	}
	return chunks, nil
}

// fitWindow shrinks window from the right until its decoded text is valid
// UTF-8 and re-tokenizes within the budget. A single token is always accepted
// so the caller makes progress.
func fitWindow(tok Tokenizer, window []int, maxTokens int) ([]int, string) {
	for n := len(window); n > 1; n-- {
		text := tok.Decode(window[:n])
		if utf8.ValidString(text) && len(tok.Encode(text)) <= maxTokens {
			return window[:n], text
		}
	}
	return window[:1], tok.Decode(window[:1])
}
