package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcp"
)

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve documentation search to MCP clients over stdio",
		Long: `Build the index and expose the search_docs, get_record and index_status
tools over the Model Context Protocol on stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeSrc, err := buildOnce(cmd.Context(), g.cfg)
			defer closeSrc()
			if err != nil {
				return err
			}
			return mcp.NewServer(svc, Version).Run(cmd.Context())
		},
	}
}
