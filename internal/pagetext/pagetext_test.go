package pagetext

import (
	"path/filepath"
	"strings"
	"testing"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/highlighter/internal/pdftest"
)

func run(s string, x, y, size float64) []pdflib.Text {
	var out []pdflib.Text
	for _, r := range s {
		out = append(out, pdflib.Text{FontSize: size, X: x, Y: y, W: size / 2, S: string(r)})
		x += size / 2
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		glyphs [][]pdflib.Text
		want   string
	}{
		{
			name: "gap becomes space",
			glyphs: [][]pdflib.Text{
				run("Alpha,", 72, 700, 10),
				run("beta.", 72+6*5+4, 700, 10),
			},
			want: "Alpha, beta.",
		},
		{
			name: "baseline change becomes newline",
			glyphs: [][]pdflib.Text{
				run("one", 72, 700, 10),
				run("two", 72, 686, 10),
			},
			want: "one\ntwo",
		},
		{
			name: "trailing space dropped at line end",
			glyphs: [][]pdflib.Text{
				run("one ", 72, 700, 10),
				run("two", 72, 686, 10),
			},
			want: "one\ntwo",
		},
		{
			name: "decoder line feed ignored",
			glyphs: [][]pdflib.Text{
				run("one", 72, 700, 10),
				{{FontSize: 10, X: 87, Y: 700, S: "\n"}},
				run("two", 87, 700, 10),
			},
			want: "onetwo",
		},
		{
			name: "explicit and positional spaces collapse",
			glyphs: [][]pdflib.Text{
				run("a ", 72, 700, 10),
				run("b", 100, 700, 10),
			},
			want: "a b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var glyphs []pdflib.Text
			for _, g := range tt.glyphs {
				glyphs = append(glyphs, g...)
			}
			l := New(glyphs)
			if got := l.Text(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if len(l.Runes) != len(l.Glyph) || len(l.Runes) != len(l.Line) {
				t.Errorf("index slices out of step: %d runes, %d glyphs, %d lines", len(l.Runes), len(l.Glyph), len(l.Line))
			}
		})
	}
}

func TestWalkFlowedPage(t *testing.T) {
	path := pdftest.WriteFlowed(t, t.TempDir(), "flowed.pdf",
		[]string{"Alpha, beta. Gamma", "second line"},
		[]string{"page two"},
	)

	var texts []string
	err := Walk(path, func(pageNr, total int, l *Layout) error {
		if total != 2 {
			t.Errorf("expected 2 pages, got %d", total)
		}
		texts = append(texts, l.Text())
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"Alpha, beta. Gamma\nsecond line", "page two"}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("expected %q, got %q", want, texts)
	}
}

func TestWalkMissingFile(t *testing.T) {
	err := Walk(filepath.Join(t.TempDir(), "nope.pdf"), func(int, int, *Layout) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
