package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "genomesearch",
		Short: "MCP server for searching genomics files across storage backends",
		Long: `genomesearch exposes S3 buckets, AWS HealthOmics sequence and reference
stores, and local manifest databases as a single ranked file search,
served over the Model Context Protocol on stdio.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")

	root.AddCommand(serveCmd(), searchCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and initializes logging from it. stdout is
// reserved for the MCP protocol, so logs always go to stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("genomesearch MCP server\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
		},
	}
}
