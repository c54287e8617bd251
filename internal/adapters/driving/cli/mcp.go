package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/adapters/driving/mcp"
)

var mcpAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol server",
	Long: `Exposes the index to MCP clients: search and ask as tools, the
provider list and per-provider documents as resources. Serves over stdio
by default, which is what assistant configurations expect; --addr
switches to streamable HTTP.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", "", "serve MCP over HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:    searchService,
		Ask:       askService,
		Providers: providerService,
		Tracking:  indexStore,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mcpAddr != "" {
		cmd.Printf("MCP listening on %s. Press Ctrl+C to stop.\n", mcpAddr)
		return server.RunHTTP(ctx, mcpAddr)
	}
	return server.Run(ctx)
}
