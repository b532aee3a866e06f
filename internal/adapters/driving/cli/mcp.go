package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search the
library and check sync status.

By default, the server communicates over stdio using JSON-RPC.
Use --port to serve over HTTP instead.

Examples:
  # Stdio mode (default)
  corpus mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  corpus mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "corpus": {
        "command": "/path/to/corpus",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Annotations: map[string]string{providerCheckAnnotation: "true"},
	RunE:        runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if retrievalService == nil {
		return errors.New("search service not configured")
	}

	ports := &mcp.Ports{
		Retrieval: retrievalService,
		Sync:      syncOrchestrator,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
