package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jtreece/genomesearch-mcp/internal/logging"
	"github.com/jtreece/genomesearch-mcp/internal/mcp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			server, err := mcp.NewServer(ctx, cfg)
			if err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				logging.Info("MCP server ready, listening on stdio",
					zap.String("version", version))
				errChan <- server.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				logging.Info("shutting down", zap.String("signal", sig.String()))
				cancel()
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}
