package main

import (
	"fmt"
	"io"

	"github.com/dgallion1/highlighter/internal/pipeline"
)

// progressPrinter writes one line per stage start and per chunk or page.
func progressPrinter(w io.Writer) pipeline.ProgressFunc {
	var last pipeline.Stage
	return func(ev pipeline.Event) {
		switch {
		case ev.TotalPages > 0:
			fmt.Fprintf(w, "[%s] page %d/%d\n", ev.Stage, ev.Page, ev.TotalPages)
		case ev.TotalChunks > 0:
			fmt.Fprintf(w, "[%s] chunk %d/%d\n", ev.Stage, ev.Chunk, ev.TotalChunks)
		case ev.Stage != last:
			fmt.Fprintf(w, "[%s]\n", ev.Stage)
		}
		last = ev.Stage
	}
}
