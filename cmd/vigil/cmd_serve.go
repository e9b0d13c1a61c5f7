package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"vigil/internal/config"
	"vigil/internal/logging"
	mcpserver "vigil/internal/mcp"
)

var flagServeConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the pipeline as tools:
analyze_run, compare_runs, and classify_one. Agents connect over stdio and
get the same deterministic results as the analyze subcommand.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagServeConfig, "config", "c", "", "pipeline config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromPath(flagServeConfig)
	if err != nil {
		return err
	}
	srv, err := mcpserver.NewServer(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logging.New("mcp").Info("starting vigil MCP server over stdio")
	return srv.Run(ctx, &sdkmcp.StdioTransport{})
}
