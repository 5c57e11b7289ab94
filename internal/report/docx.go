package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/fumiama/go-docx"
)

// Docx renders the report as a Word document. Each sentence is one
// paragraph; sentences found in the PDF are highlighted in yellow.
func (r *Report) Docx() ([]byte, error) {
	w := docx.New().WithDefaultTheme()

	w.AddParagraph().AddText("Highlights for " + filepath.Base(r.Source)).Size("32").Bold()
	w.AddParagraph().AddText(fmt.Sprintf("%d sentences, %d highlights, %d not found, %d pages",
		len(r.Entries), r.Highlights, r.Unmatched, r.Pages))

	for _, e := range r.Entries {
		para := w.AddParagraph()
		run := para.AddText(e.Sentence)
		if e.Matches > 0 {
			run.Highlight("yellow")
		} else {
			run.Color("808080").Italic()
		}
		para.AddText(fmt.Sprintf("  (chunk %d, %d matches)", e.Chunk, e.Matches)).Size("16").Color("808080")
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}
