package parser

import (
	"strings"

	"github.com/dgallion1/highlighter/internal/doctree"
)

const referencesHeading = "References"

// Flatten joins the page texts of doc in page order, one line per line of
// source text. When stopAtReferences is set, flattening stops at the first
// line that reads "References" (ignoring case and surrounding whitespace);
// that line and everything after it are dropped.
func Flatten(doc *doctree.Document, stopAtReferences bool) string {
	var sb strings.Builder
	for _, page := range doc.Pages {
		if page.Text == "" {
			continue
		}
		for _, line := range splitLines(page.Text) {
			if stopAtReferences && IsReferencesHeading(line) {
				return strings.TrimSpace(sb.String())
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

// IsReferencesHeading reports whether line is a standalone References heading.
func IsReferencesHeading(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), referencesHeading)
}

// splitLines splits on \n, \r\n, \r and form feeds, keeping empty lines.
func splitLines(text string) []string {
	return strings.Split(lineBreaks.Replace(text), "\n")
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n", "\v", "\n")
