// Package pagetext lays the positioned glyphs of a PDF page out as reading
// text. Text extraction and highlight search both read pages through it, so
// a sentence quoted from the extracted text is found on the page it came
// from.
package pagetext

import (
	"fmt"
	"math"
	"unicode"

	pdflib "github.com/ledongthuc/pdf"
)

// Layout heuristics, as fractions of the font size.
const (
	baselineShift = 0.5
	wordGap       = 0.15
)

// Layout is the text of one page. Every rune remembers the glyph it came
// from (-1 for inserted separators) and its line number. Lines are
// separated by '\n'; words split by positioning alone get a ' '.
type Layout struct {
	Runes  []rune
	Glyph  []int
	Line   []int
	Glyphs []pdflib.Text
}

// New lays out glyphs in content-stream order. A change of baseline starts
// a new line; a horizontal gap wider than a fraction of the font size
// becomes a space.
func New(glyphs []pdflib.Text) *Layout {
	l := &Layout{Glyphs: glyphs}
	line := 0
	prev := -1
	for i, g := range glyphs {
		if ignorable(g.S) {
			continue
		}
		if prev >= 0 {
			p := glyphs[prev]
			size := max(g.FontSize, p.FontSize, 1)
			switch {
			case math.Abs(g.Y-p.Y) > baselineShift*size:
				line++
				l.breakLine(line)
			case g.X-(p.X+GlyphWidth(p)) > wordGap*size:
				l.space(line)
			}
		}
		for _, r := range g.S {
			if unicode.IsSpace(r) {
				if l.endsInSpace() {
					continue
				}
				r = ' '
			}
			l.push(r, i, line)
		}
		prev = i
	}
	return l
}

// ignorable reports glyphs that carry no visible text, such as the line
// feed the decoder emits after every TJ array.
func ignorable(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || (!unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return false
		}
	}
	return true
}

func (l *Layout) push(r rune, glyph, line int) {
	l.Runes = append(l.Runes, r)
	l.Glyph = append(l.Glyph, glyph)
	l.Line = append(l.Line, line)
}

func (l *Layout) endsInSpace() bool {
	n := len(l.Runes)
	return n == 0 || unicode.IsSpace(l.Runes[n-1])
}

func (l *Layout) space(line int) {
	if !l.endsInSpace() {
		l.push(' ', -1, line)
	}
}

// breakLine drops trailing spaces and ends the current line.
func (l *Layout) breakLine(line int) {
	n := len(l.Runes)
	for n > 0 && l.Runes[n-1] == ' ' {
		n--
	}
	l.Runes, l.Glyph, l.Line = l.Runes[:n], l.Glyph[:n], l.Line[:n]
	if n > 0 {
		l.push('\n', -1, line)
	}
}

// Text returns the page text, one source line per line.
func (l *Layout) Text() string {
	return string(l.Runes)
}

// GlyphWidth returns the advance of g, estimating half the font size when
// the font carries no width table.
func GlyphWidth(g pdflib.Text) float64 {
	if g.W > 0 {
		return g.W
	}
	return 0.5 * g.FontSize
}

// Walk opens the PDF at path and calls fn with the layout of every page in
// document order. Pages without content get an empty layout. The decoder
// panics on some malformed content streams; that is returned as an error.
func Walk(path string, fn func(pageNr, total int, l *Layout) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decode panic: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	total := reader.NumPage()
	for pageNr := 1; pageNr <= total; pageNr++ {
		page := reader.Page(pageNr)
		var glyphs []pdflib.Text
		if !page.V.IsNull() {
			glyphs = page.Content().Text
		}
		if err := fn(pageNr, total, New(glyphs)); err != nil {
			return err
		}
	}
	return nil
}
