// Package mcptool exposes the highlighter as an MCP tool over stdio.
package mcptool

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dgallion1/highlighter/internal/pipeline"
	"github.com/dgallion1/highlighter/internal/report"
)

// Tool argument keys, shared by the schema and the handler.
const (
	argPath      = "path"
	argOutput    = "output"
	argMaxTokens = "max_tokens"
)

// ToolName is the registered name of the highlight tool.
const ToolName = "highlight_pdf"

// Tool runs highlight requests through a pipeline.
type Tool struct {
	runner pipeline.Runner
	suffix string
	model  string
	log    *slog.Logger
}

func New(runner pipeline.Runner, suffix, model string, log *slog.Logger) *Tool {
	return &Tool{runner: runner, suffix: suffix, model: model, log: log}
}

// NewServer returns an MCP server with the highlight tool registered.
func NewServer(name, version string, t *Tool) *server.MCPServer {
	s := server.NewMCPServer(name, version)
	t.Register(s)
	return s
}

// Register binds the tool definition to its handler.
func (t *Tool) Register(s *server.MCPServer) {
	s.AddTool(
		mcp.NewTool(ToolName,
			mcp.WithDescription("Highlight the key sentences of a research paper PDF. "+
				"A language model picks the important sentences and a copy of the PDF is written "+
				"with a highlight annotation over each occurrence. The source file is not modified."),
			mcp.WithString(argPath,
				mcp.Required(),
				mcp.Description("Absolute path of the PDF to highlight"),
			),
			mcp.WithString(argOutput,
				mcp.Description("Path of the annotated copy (default: <name>_highlighted.pdf next to the source)"),
			),
			mcp.WithNumber(argMaxTokens,
				mcp.Description("Token budget per chunk sent to the model"),
			),
		),
		t.handleHighlight,
	)
}

func (t *Tool) handleHighlight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, ok := req.Params.Arguments[argPath].(string)
	if !ok || src == "" {
		return mcp.NewToolResultError(argPath + " is required"), nil
	}
	if !filepath.IsAbs(src) {
		return mcp.NewToolResultError(argPath + " must be an absolute path"), nil
	}

	dst, _ := req.Params.Arguments[argOutput].(string)
	if dst == "" {
		dst = pipeline.OutputPath(src, t.suffix)
	}

	opts := t.runner.Options()
	if v, ok := req.Params.Arguments[argMaxTokens]; ok {
		n, ok := v.(float64)
		if !ok || n < 1 || n != float64(int(n)) {
			return mcp.NewToolResultError(argMaxTokens + " must be a positive integer"), nil
		}
		opts.MaxTokens = int(n)
	}

	log := t.log.With("tool", ToolName, "src", src)
	res, err := t.runner.RunWith(ctx, src, dst, opts, func(ev pipeline.Event) {
		if ev.TotalPages > 0 {
			log.Debug("progress", "stage", ev.Stage, "page", ev.Page, "total_pages", ev.TotalPages)
		} else if ev.TotalChunks > 0 {
			log.Debug("progress", "stage", ev.Stage, "chunk", ev.Chunk, "total_chunks", ev.TotalChunks)
		}
	})
	if err != nil {
		log.Error("highlight failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("highlight %s: %v", src, err)), nil
	}
	return mcp.NewToolResultText(report.FromResult(res, t.model).Markdown()), nil
}
