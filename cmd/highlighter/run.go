package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/highlighter/internal/config"
	"github.com/dgallion1/highlighter/internal/pipeline"
	"github.com/dgallion1/highlighter/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run <pdf>",
	Short: "Highlight the key sentences of one PDF",
	Long: `Run extracts the text of a PDF, splits it into token-bounded chunks, asks
the configured model for the key sentences of each chunk, and writes a copy
of the PDF with those sentences highlighted. The source file is never
modified. By default the copy is written next to the source as
<name>_highlighted.pdf.`,
	Args: cobra.ExactArgs(1),
	RunE: runHighlight,
}

func init() {
	runCmd.Flags().StringP("out", "o", "", "output path (default: <name>_highlighted.pdf next to the source)")
	runCmd.Flags().Int("max-tokens", 0, "token budget per chunk (default from CHUNK_TOKENS)")
	runCmd.Flags().String("report", "", "also write a report (.md, .html, .json, .yaml, .docx)")

	_ = viper.BindPFlag(config.KeyChunkTokens, runCmd.Flags().Lookup("max-tokens"))

	rootCmd.AddCommand(runCmd)
}

func runHighlight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr, false)

	src, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	dst, _ := cmd.Flags().GetString("out")
	if dst == "" {
		dst = pipeline.OutputPath(src, cfg.OutputSuffix)
	}
	reportPath, _ := cmd.Flags().GetString("report")

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.ErrOrStderr()
	res, err := a.pipeline.Run(ctx, src, dst, progressPrinter(out))
	if err != nil {
		return err
	}

	if reportPath != "" {
		if err := report.FromResult(res, a.points.Model()).WriteFile(reportPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(out, "Report: %s\n", reportPath)
	}

	fmt.Fprintf(out, "Highlighted %d of %d sentences (%d highlights)\n",
		len(res.Sentences)-len(res.Annotation.Unmatched()), len(res.Sentences), res.Annotation.Highlights)
	fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	return nil
}
