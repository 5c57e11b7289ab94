// Package pdftest builds small, valid PDF files for tests.
//
// Build draws every line of a page in its own text object with a 12pt
// Helvetica face, so the glyph positions are predictable. BuildFlowed lays
// a page out the way typesetters usually do: one text object per page,
// lines advanced with Td and words placed with TJ offsets instead of space
// characters.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	fontSize   = 12
	leading    = 16
	leftMargin = 72
	topLine    = 720
	glyphWidth = 500 // uniform advance width, in 1/1000 text space units
)

// Build returns the bytes of a PDF with one page per element of pages.
func Build(pages ...[]string) []byte {
	return build(pages, func(lines []string) string {
		var content strings.Builder
		for j, line := range lines {
			fmt.Fprintf(&content, "BT /F1 %d Tf %d %d Td (%s) Tj ET\n",
				fontSize, leftMargin, topLine-leading*j, escape(line))
		}
		return content.String()
	})
}

// BuildFlowed is Build with the page content written as a single text
// object. Words of a line are separated by a TJ offset of a third of an em,
// so no space glyph appears in the content stream.
func BuildFlowed(pages ...[]string) []byte {
	return build(pages, func(lines []string) string {
		var content strings.Builder
		fmt.Fprintf(&content, "BT /F1 %d Tf %d %d Td\n", fontSize, leftMargin, topLine)
		for j, line := range lines {
			if j > 0 {
				fmt.Fprintf(&content, "0 %d Td\n", -leading)
			}
			words := strings.Fields(line)
			for k, w := range words {
				words[k] = "(" + escape(w) + ")"
			}
			fmt.Fprintf(&content, "[%s] TJ\n", strings.Join(words, " -333 "))
		}
		content.WriteString("ET\n")
		return content.String()
	})
}

func build(pages [][]string, render func(lines []string) string) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1: catalog, 2: page tree, 3: font, then a page + content pair per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	widths := make([]string, 95)
	for i := range widths {
		widths[i] = fmt.Sprint(glyphWidth)
	}
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 126 /Widths [" + strings.Join(widths, " ") + "] >>")

	for i, lines := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))

		stream := render(lines)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// Write builds a PDF and writes it to dir/name, returning the full path.
func Write(t testing.TB, dir, name string, pages ...[]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("write test pdf: %v", err)
	}
	return path
}

// WriteFlowed is Write for BuildFlowed.
func WriteFlowed(t testing.TB, dir, name string, pages ...[]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildFlowed(pages...), 0o644); err != nil {
		t.Fatalf("write test pdf: %v", err)
	}
	return path
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
