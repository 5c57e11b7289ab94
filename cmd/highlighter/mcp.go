package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/dgallion1/highlighter/internal/mcptool"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose highlight_pdf as an MCP tool over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// stdout carries the protocol.
		log := newLogger(cfg, os.Stderr, true)

		a, err := buildApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		tool := mcptool.New(a.pipeline, cfg.OutputSuffix, a.points.Model(), log)
		return server.ServeStdio(mcptool.NewServer("highlighter", version, tool))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
