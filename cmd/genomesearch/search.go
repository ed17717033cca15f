package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtreece/genomesearch-mcp/internal/logging"
	"github.com/jtreece/genomesearch-mcp/internal/mcp"
	"github.com/jtreece/genomesearch-mcp/internal/search"
)

// searchCmd runs a one-shot search from the command line, bypassing the MCP
// transport. Useful for checking backend configuration and ranking behavior.
func searchCmd() *cobra.Command {
	var (
		fileType   string
		maxResults int
	)

	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "Run a one-shot search and print ranked results as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync() }()

			server, err := mcp.NewServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer server.Close()

			resp, err := server.Search(cmd.Context(), search.Request{
				Terms:      args,
				TypeFilter: fileType,
				MaxResults: maxResults,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("encode results: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fileType, "file-type", "", "restrict results to a file type or category")
	cmd.Flags().IntVar(&maxResults, "max-results", 10, "maximum number of result groups")
	return cmd
}
