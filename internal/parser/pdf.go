package parser

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dgallion1/highlighter/internal/doctree"
	"github.com/dgallion1/highlighter/internal/pagetext"
)

// PDFParser handles PDF files. It tries the Go library first,
// then optionally falls back to pdftotext.
type PDFParser struct {
	FallbackPdftotext bool
	StopAtReferences  bool // Cut the flattened text at a "References" heading.
}

// Parse reads every page of the PDF at path. Pages without a text layer are
// kept with empty text so page numbers stay aligned with the file.
func (p *PDFParser) Parse(path string) (*doctree.Document, error) {
	pages, err := extractPDFPages(path)
	if err != nil && p.FallbackPdftotext {
		var fbErr error
		pages, fbErr = extractPdftotext(path)
		if fbErr != nil {
			err = fmt.Errorf("%w (pdftotext fallback: %v)", err, fbErr)
		} else {
			err = nil
		}
	}
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	doc := &doctree.Document{Path: path}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, &doctree.Page{Number: i + 1, Text: text})
	}
	return doc, nil
}

// ExtractText returns the page texts of the PDF at path joined in page order.
func (p *PDFParser) ExtractText(path string) (string, error) {
	doc, err := p.Parse(path)
	if err != nil {
		return "", err
	}
	return Flatten(doc, p.StopAtReferences), nil
}

// extractPDFPages lays each page out from its positioned glyphs, so line
// breaks made with Td and word gaps made with TJ offsets survive.
func extractPDFPages(path string) ([]string, error) {
	var pages []string
	err := pagetext.Walk(path, func(_, total int, l *pagetext.Layout) error {
		if pages == nil {
			pages = make([]string, 0, total)
		}
		pages = append(pages, l.Text())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func extractPdftotext(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on form feeds, dropping the empty
// element after the final page break.
func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
