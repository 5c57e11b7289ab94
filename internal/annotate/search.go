package annotate

import (
	"math"
	"unicode"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/highlighter/internal/pagetext"
)

// Box is an axis-aligned rectangle in PDF user space.
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Highlight box extents, as fractions of the font size.
const (
	descent = 0.22
	ascent  = 0.9
)

// pageLayout is the searchable text of one page. Line breaks compare equal
// to spaces so a sentence wrapped across lines still matches.
type pageLayout struct {
	*pagetext.Layout
}

func layoutPage(glyphs []pdflib.Text) *pageLayout {
	return &pageLayout{pagetext.New(glyphs)}
}

func (pl *pageLayout) String() string {
	return pl.Text()
}

// find returns the rune ranges of every non-overlapping, case-sensitive
// occurrence of needle, scanning left to right.
func (pl *pageLayout) find(needle string) [][2]int {
	nr := []rune(needle)
	if len(nr) == 0 {
		return nil
	}
	var out [][2]int
	for i := 0; i+len(nr) <= len(pl.Runes); {
		if runesEqual(pl.Runes[i:i+len(nr)], nr) {
			out = append(out, [2]int{i, i + len(nr)})
			i += len(nr)
			continue
		}
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if fold(a[i]) != fold(b[i]) {
			return false
		}
	}
	return true
}

// fold maps every whitespace rune to a plain space.
func fold(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}

// boxes returns one rectangle per text line covered by the rune range.
func (pl *pageLayout) boxes(span [2]int) []Box {
	var out []Box
	curLine := -1
	for i := span[0]; i < span[1]; i++ {
		gi := pl.Glyph[i]
		if gi < 0 {
			continue
		}
		g := pl.Glyphs[gi]
		b := Box{
			X0: g.X,
			Y0: g.Y - descent*g.FontSize,
			X1: g.X + pagetext.GlyphWidth(g),
			Y1: g.Y + ascent*g.FontSize,
		}
		if pl.Line[i] != curLine {
			out = append(out, b)
			curLine = pl.Line[i]
			continue
		}
		last := &out[len(out)-1]
		last.X0 = math.Min(last.X0, b.X0)
		last.Y0 = math.Min(last.Y0, b.Y0)
		last.X1 = math.Max(last.X1, b.X1)
		last.Y1 = math.Max(last.Y1, b.Y1)
	}
	return out
}

// Match is one occurrence of a sentence on a page.
type Match struct {
	Sentence int // index into the sentence list
	Page     int // 1-based
	Boxes    []Box
}

// searchPDF finds every occurrence of every sentence, pages in order and
// sentences in input order within a page. onPage, when set, is called after
// each page is searched.
func searchPDF(path string, sentences []string, onPage func(page, total int)) (matches []Match, numPages int, err error) {
	err = pagetext.Walk(path, func(pageNr, total int, l *pagetext.Layout) error {
		numPages = total
		pl := &pageLayout{l}
		for si, s := range sentences {
			for _, span := range pl.find(s) {
				if boxes := pl.boxes(span); len(boxes) > 0 {
					matches = append(matches, Match{Sentence: si, Page: pageNr, Boxes: boxes})
				}
			}
		}
		if onPage != nil {
			onPage(pageNr, total)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return matches, numPages, nil
}
