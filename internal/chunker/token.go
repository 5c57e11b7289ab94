package chunker

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer converts text to subword token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// DefaultEncoding is the GPT-2 byte-pair vocabulary.
const DefaultEncoding = "r50k_base"

var loaderOnce sync.Once

// TiktokenTokenizer is a Tokenizer backed by tiktoken BPE ranks. The ranks are
// compiled into the binary, so no network access is needed.
type TiktokenTokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding ("" selects DefaultEncoding).
func NewTiktoken(encoding string) (*TiktokenTokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{name: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (t *TiktokenTokenizer) Name() string {
	return t.name
}

// Encode treats special-token text as ordinary text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
