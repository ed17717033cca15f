package mcp

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/omics"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/internal/backend/manifest"
	omicsbackend "github.com/jtreece/genomesearch-mcp/internal/backend/omics"
	s3backend "github.com/jtreece/genomesearch-mcp/internal/backend/s3"
	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/internal/search"
)

const (
	// ServerName is the MCP server name
	ServerName = "genomesearch-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	engine   *search.Engine
	cfg      *config.Config
	backends []backend.Backend
	manifest *manifest.Backend
}

// NewServer builds the search engine over every backend the configuration
// names and registers the MCP tools. At least one backend must be
// configured.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	backends, mf, err := buildBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine, err := search.New(cfg, backends...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search engine: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		engine:   engine,
		cfg:      cfg,
		backends: backends,
		manifest: mf,
	}

	s.registerTools()
	return s, nil
}

// buildBackends constructs one backend per configured storage location.
func buildBackends(ctx context.Context, cfg *config.Config) ([]backend.Backend, *manifest.Backend, error) {
	var backends []backend.Backend

	needsAWS := len(cfg.S3Buckets) > 0 ||
		len(cfg.SequenceStoreIDs) > 0 ||
		len(cfg.ReferenceStoreIDs) > 0

	if needsAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		if len(cfg.S3Buckets) > 0 {
			be, err := s3backend.NewFromConfig(ctx, cfg, awss3.NewFromConfig(awsCfg))
			if err != nil {
				return nil, nil, fmt.Errorf("failed to initialize s3 backend: %w", err)
			}
			backends = append(backends, be)
		}

		if len(cfg.SequenceStoreIDs) > 0 || len(cfg.ReferenceStoreIDs) > 0 {
			client := omics.NewFromConfig(awsCfg)
			if len(cfg.SequenceStoreIDs) > 0 {
				backends = append(backends, omicsbackend.NewSequenceStore(cfg, client))
			}
			if len(cfg.ReferenceStoreIDs) > 0 {
				backends = append(backends, omicsbackend.NewReferenceStore(cfg, client))
			}
		}
	}

	var mf *manifest.Backend
	if cfg.ManifestPath != "" {
		var err error
		mf, err = manifest.Open(cfg.ManifestPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open manifest %s: %w", cfg.ManifestPath, err)
		}
		backends = append(backends, mf)
	}

	if len(backends) == 0 {
		return nil, nil, search.ErrNoBackends
	}
	return backends, mf, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases the search engine and any backend resources.
func (s *Server) Close() {
	s.engine.Close()
	if s.manifest != nil {
		_ = s.manifest.Close()
	}
}

// Search runs a one-shot search against the engine, bypassing the MCP
// transport. Used by the CLI search command.
func (s *Server) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	return s.engine.Search(ctx, req)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchFilesTool(), s.handleSearchFiles)
	s.mcp.AddTool(searchFilesPaginatedTool(), s.handleSearchFilesPaginated)
	s.mcp.AddTool(capabilitiesTool(), s.handleGetCapabilities)
}
