package annotate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/dgallion1/highlighter/internal/parser"
	"github.com/dgallion1/highlighter/internal/pdftest"
)

func testAnnotator() *Annotator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// countHighlights returns the number of /Highlight annotations per page.
func countHighlights(t *testing.T, path string) []int {
	t.Helper()
	ctx, err := readContext(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	counts := make([]int, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		d, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil {
			t.Fatalf("page %d: %v", pageNr, err)
		}
		obj, ok := d.Find("Annots")
		if !ok {
			continue
		}
		arr, err := ctx.DereferenceArray(obj)
		if err != nil {
			t.Fatalf("page %d annots: %v", pageNr, err)
		}
		for _, o := range arr {
			ad, err := ctx.DereferenceDict(o)
			if err != nil {
				t.Fatalf("page %d annot: %v", pageNr, err)
			}
			if st := ad.NameEntry("Subtype"); st != nil && *st == "Highlight" {
				counts[pageNr-1]++
			}
			if _, ok := ad.Find("QuadPoints"); !ok {
				t.Errorf("page %d: highlight without QuadPoints", pageNr)
			}
			if c, ok := ad.Find("C"); ok {
				if arr, ok := c.(types.Array); !ok || len(arr) != 3 {
					t.Errorf("page %d: bad color %v", pageNr, c)
				}
			}
		}
	}
	return counts
}

func TestAnnotate_EveryOccurrence(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{
		"Alpha, beta. Gamma delta.",
		"Again beta. here",
	})
	dst := filepath.Join(dir, "paper_highlighted.pdf")

	res, err := testAnnotator().Annotate(context.Background(), src, dst, []string{"beta."})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Highlights != 2 {
		t.Errorf("expected 2 highlights, got %d", res.Highlights)
	}
	if !slices.Equal(res.Matches, []int{2}) {
		t.Errorf("expected matches [2], got %v", res.Matches)
	}
	if got := countHighlights(t, dst); !slices.Equal(got, []int{2}) {
		t.Errorf("expected [2] highlight annotations in output, got %v", got)
	}
}

func TestAnnotate_PagesAndSentenceOrder(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "two.pdf",
		[]string{"First page says hello."},
		[]string{"Second page says hello.", "And goodbye."},
	)
	dst := filepath.Join(dir, "out.pdf")

	var pages []int
	a := testAnnotator()
	a.OnPage = func(page, total int) {
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
		pages = append(pages, page)
	}

	res, err := a.Annotate(context.Background(), src, dst, []string{"goodbye.", "hello.", "absent"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !slices.Equal(res.Matches, []int{1, 2, 0}) {
		t.Errorf("expected matches [1 2 0], got %v", res.Matches)
	}
	if !slices.Equal(res.Unmatched(), []int{2}) {
		t.Errorf("expected unmatched [2], got %v", res.Unmatched())
	}
	if res.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", res.Pages)
	}
	if !slices.Equal(pages, []int{1, 2}) {
		t.Errorf("expected progress for pages [1 2], got %v", pages)
	}
	if got := countHighlights(t, dst); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("expected per-page highlights [1 2], got %v", got)
	}
}

func TestAnnotate_NoMatchLeavesNoAnnotations(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{"Alpha, beta. Gamma delta."})
	dst := filepath.Join(dir, "out.pdf")

	res, err := testAnnotator().Annotate(context.Background(), src, dst, []string{"Beta.", "zeta"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Highlights != 0 {
		t.Errorf("expected 0 highlights, got %d", res.Highlights)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if got := countHighlights(t, dst); !slices.Equal(got, []int{0}) {
		t.Errorf("expected no annotations, got %v", got)
	}
}

func TestAnnotate_EmptySentenceListCopies(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{"Nothing to see."})
	dst := filepath.Join(dir, "out.pdf")

	res, err := testAnnotator().Annotate(context.Background(), src, dst, nil)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Highlights != 0 || len(res.Matches) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestAnnotate_WrappedSentenceOneBoxPerLine(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "wrap.pdf", []string{"The quick brown", "fox jumps over."})
	dst := filepath.Join(dir, "out.pdf")

	res, err := testAnnotator().Annotate(context.Background(), src, dst, []string{"brown fox jumps"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !slices.Equal(res.Matches, []int{1}) {
		t.Errorf("expected one match, got %v", res.Matches)
	}
	if res.Highlights != 2 {
		t.Errorf("expected one highlight per line (2), got %d", res.Highlights)
	}
}

func TestAnnotate_SourceUntouched(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{"Alpha, beta."})
	before, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := testAnnotator().Annotate(context.Background(), src, filepath.Join(dir, "out.pdf"), []string{"beta."}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	after, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("source file was modified")
	}
}

func TestAnnotate_RejectsSourceAsDestination(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{"Alpha, beta."})
	before, _ := os.ReadFile(src)

	for _, dst := range []string{src, filepath.Join(dir, ".", "paper.pdf")} {
		_, err := testAnnotator().Annotate(context.Background(), src, dst, []string{"beta."})
		var aerr *AnnotationError
		if !errors.As(err, &aerr) {
			t.Fatalf("dst %s: expected AnnotationError, got %v", dst, err)
		}
		if aerr.Op != "open" {
			t.Errorf("expected op open, got %q", aerr.Op)
		}
	}

	after, _ := os.ReadFile(src)
	if !bytes.Equal(before, after) {
		t.Error("source file was modified")
	}
}

func TestAnnotate_MissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.pdf")
	_, err := testAnnotator().Annotate(context.Background(), filepath.Join(dir, "missing.pdf"), dst, []string{"x"})
	var aerr *AnnotationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AnnotationError, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("expected no output file")
	}
}

func TestAnnotate_InvalidPDFLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(src, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.pdf")

	_, err := testAnnotator().Annotate(context.Background(), src, dst, []string{"x"})
	var aerr *AnnotationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AnnotationError, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the source in %s, found %d entries", dir, len(entries))
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ffff00")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	if c != Yellow {
		t.Errorf("expected yellow, got %v", c)
	}
	if c, _ := ParseColor("00FF00"); c != (Color{0, 1, 0}) {
		t.Errorf("expected green, got %v", c)
	}
	for _, bad := range []string{"", "#fff", "#gggggg"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q): expected error", bad)
		}
	}
}

func TestAnnotate_ExtractedLinesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.WriteFlowed(t, dir, "flowed.pdf",
		[]string{"Alpha, beta. Gamma", "delta runs on."},
		[]string{"Epsilon closes it."},
	)
	text, err := (&parser.PDFParser{}).ExtractText(src)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}

	lines := strings.Split(text, "\n")
	// A sentence quoted across the line break, newline included.
	sentences := append(slices.Clone(lines), "Gamma\ndelta")

	res, err := testAnnotator().Annotate(context.Background(), src, filepath.Join(dir, "out.pdf"), sentences)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	for i, n := range res.Matches {
		if n < 1 {
			t.Errorf("sentence %q: expected a match, got none", sentences[i])
		}
	}
	if len(lines) != 3 {
		t.Errorf("expected 3 extracted lines, got %q", lines)
	}
}

func TestAnnotate_NoConfigDirWritten(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{"Alpha, beta."})
	if _, err := testAnnotator().Annotate(context.Background(), src, filepath.Join(dir, "out.pdf"), []string{"beta."}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	entries, err := os.ReadDir(home)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected nothing written under the home directory, found %v", entries)
	}
}

func TestAnnotate_OutputMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "paper.pdf", []string{"Alpha, beta."})
	dst := filepath.Join(dir, "out.pdf")
	if _, err := testAnnotator().Annotate(context.Background(), src, dst, []string{"beta."}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o644 {
		t.Errorf("expected mode 0644, got %v", got)
	}
}
