package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// AnnotationError reports a failure while searching or writing a PDF.
type AnnotationError struct {
	Op   string // "open", "search", "annotate", "write"
	Page int    // 1-based; 0 when not page specific
	Err  error
}

func (e *AnnotationError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("annotate %s page %d: %v", e.Op, e.Page, e.Err)
	}
	return fmt.Sprintf("annotate %s: %v", e.Op, e.Err)
}

func (e *AnnotationError) Unwrap() error {
	return e.Err
}

// Result summarizes one annotation pass.
type Result struct {
	Highlights int   `json:"highlights" yaml:"highlights"`
	Matches    []int `json:"matches" yaml:"matches"` // per sentence, in input order
	Pages      int   `json:"pages" yaml:"pages"`
}

// Unmatched returns the indexes of sentences with no occurrence.
func (r *Result) Unmatched() []int {
	var out []int
	for i, n := range r.Matches {
		if n == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Color is an RGB triple with components in [0, 1].
type Color [3]float64

// Yellow is the default highlight color.
var Yellow = Color{1, 1, 0}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	var c Color
	for i := range c {
		v, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		c[i] = float64(v) / 255
	}
	return c, nil
}

// Annotator adds highlight annotations over sentence occurrences.
type Annotator struct {
	Color   Color
	Opacity float64
	OnPage  func(page, total int) // called after each page is searched
	log     *slog.Logger
	nowFunc func() time.Time
}

func New(log *slog.Logger) *Annotator {
	return &Annotator{
		Color:   Yellow,
		Opacity: 1,
		log:     log,
		nowFunc: time.Now,
	}
}

// Annotate copies src to dst with a highlight annotation over every
// occurrence of every sentence. Sentences with no occurrence are skipped
// silently and show up as zero in Result.Matches. src is never modified and
// dst must differ from src; dst appears only once it is complete.
func (a *Annotator) Annotate(ctx context.Context, src, dst string, sentences []string) (*Result, error) {
	return a.AnnotateProgress(ctx, src, dst, sentences, a.OnPage)
}

// AnnotateProgress is Annotate with a per-call page callback in place of
// OnPage.
func (a *Annotator) AnnotateProgress(ctx context.Context, src, dst string, sentences []string, onPage func(page, total int)) (*Result, error) {
	if err := checkDistinct(src, dst); err != nil {
		return nil, &AnnotationError{Op: "open", Err: err}
	}

	matches, numPages, err := searchPDF(src, sentences, onPage)
	if err != nil {
		return nil, &AnnotationError{Op: "search", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Matches: make([]int, len(sentences)), Pages: numPages}
	for _, m := range matches {
		res.Matches[m.Sentence]++
		res.Highlights += len(m.Boxes)
	}

	pdfCtx, err := readContext(src)
	if err != nil {
		return nil, &AnnotationError{Op: "open", Err: err}
	}

	now := a.nowFunc()
	for _, m := range matches {
		for _, b := range m.Boxes {
			if err := a.addHighlight(pdfCtx, m.Page, b, now); err != nil {
				return nil, &AnnotationError{Op: "annotate", Page: m.Page, Err: err}
			}
		}
	}

	if err := writeAtomic(pdfCtx, dst); err != nil {
		return nil, &AnnotationError{Op: "write", Err: err}
	}

	a.log.Info("pdf annotated",
		"src", src,
		"dst", dst,
		"pages", numPages,
		"highlights", res.Highlights,
		"unmatched", len(res.Unmatched()),
	)
	return res, nil
}

func checkDistinct(src, dst string) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if srcAbs == dstAbs {
		return fmt.Errorf("destination %s is the source file", dst)
	}
	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	if di, err := os.Stat(dst); err == nil && os.SameFile(si, di) {
		return fmt.Errorf("destination %s is the source file", dst)
	}
	return nil
}

// pdfcpu otherwise writes a config.yml under the user's config directory on
// first use and exits the process if it cannot.
var disableConfigDir sync.Once

func readContext(path string) (*model.Context, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	return api.ReadValidateAndOptimize(f, conf)
}

func (a *Annotator) addHighlight(ctx *model.Context, pageNr int, b Box, now time.Time) error {
	pageDict, pageRef, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return fmt.Errorf("page %d not found", pageNr)
	}

	annot := types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Highlight"),
		"Rect":    floats(b.X0, b.Y0, b.X1, b.Y1),
		// Upper left, upper right, lower left, lower right.
		"QuadPoints": floats(b.X0, b.Y1, b.X1, b.Y1, b.X0, b.Y0, b.X1, b.Y0),
		"C":          floats(a.Color[0], a.Color[1], a.Color[2]),
		"CA":         types.Float(a.Opacity),
		"F":          types.Integer(4), // print
		"NM":         types.StringLiteral(uuid.NewString()),
		"M":          types.StringLiteral(now.UTC().Format("D:20060102150405Z")),
	}
	if pageRef != nil {
		annot["P"] = *pageRef
	}

	ref, err := ctx.IndRefForNewObject(annot)
	if err != nil {
		return err
	}

	var annots types.Array
	if obj, ok := pageDict.Find("Annots"); ok {
		annots, err = ctx.DereferenceArray(obj)
		if err != nil {
			return fmt.Errorf("page annotations: %w", err)
		}
	}
	pageDict["Annots"] = append(annots, *ref)
	return nil
}

func floats(vs ...float64) types.Array {
	arr := make(types.Array, len(vs))
	for i, v := range vs {
		arr[i] = types.Float(v)
	}
	return arr
}

// outputMode is the permission of a finished output file; the temp file it
// is written through starts out private.
const outputMode = 0o644

// writeAtomic writes ctx to a temp file beside dst and renames it into place.
func writeAtomic(ctx *model.Context, dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".highlight-*.pdf")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := api.WriteContext(ctx, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(outputMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
