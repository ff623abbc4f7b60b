package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/cmd/ragchat/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server exposing saved chats",
	Long: `Start an MCP (Model Context Protocol) server over stdio that lets an
assistant list, search and read your saved chats. The server is read-only.

Configure in your MCP client:
  {
    "mcpServers": {
      "ragchat": {
        "command": "ragchat",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol, so no console logging
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := mcp.StartServer(a.repo, rootCmd.Version); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
