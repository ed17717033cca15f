package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

func testServerConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ManifestPath: filepath.Join(t.TempDir(), "manifest.db"),

		SearchTimeout:       5 * time.Second,
		PaginationCacheTTL:  time.Minute,
		PaginationCacheSize: 100,
		CacheKeepRatio:      0.8,
		MaintenanceInterval: time.Hour,

		MinBufferSize:        10,
		MaxBufferSize:        100,
		BufferMultiplier:     3,
		LargeBufferThreshold: 50,
		DeepPageThreshold:    10,

		MaxResults: 100,
	}
}

// newTestServer seeds a manifest-backed server with a few records.
func newTestServer(t *testing.T, paths ...string) *Server {
	t.Helper()
	cfg := testServerConfig(t)

	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	for _, p := range paths {
		err := s.manifest.Add(context.Background(), types.GenomicsFile{
			Path:         p,
			SizeBytes:    2048,
			StorageClass: "STANDARD",
			LastModified: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	return s
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result should be text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestServerRequiresBackends(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.ManifestPath = ""

	_, err := NewServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSearchFilesTool(t *testing.T) {
	s := newTestServer(t,
		"s3://bucket/sample42/reads.bam",
		"s3://bucket/sample42/reads.bam.bai",
		"s3://bucket/other/notes.txt",
	)

	payload := callTool(t, s.handleSearchFiles, "search_genomics_files", map[string]interface{}{
		"search_terms": []interface{}{"sample42"},
	})

	assert.Equal(t, float64(1), payload["total_found"])

	results := payload["results"].([]interface{})
	require.Len(t, results, 1)
	entry := results[0].(map[string]interface{})
	primary := entry["primary"].(map[string]interface{})
	assert.Equal(t, "s3://bucket/sample42/reads.bam", primary["path"])
	assert.Equal(t, "bam_index", entry["group_type"])

	backends := payload["searched_backends"].([]interface{})
	require.Len(t, backends, 1)
	assert.Equal(t, "manifest", backends[0].(map[string]interface{})["name"])
}

func TestSearchFilesToolTypeFilter(t *testing.T) {
	s := newTestServer(t,
		"s3://bucket/a/reads.bam",
		"s3://bucket/a/variants.vcf.gz",
	)

	payload := callTool(t, s.handleSearchFiles, "search_genomics_files", map[string]interface{}{
		"file_type": "variant",
	})

	results := payload["results"].([]interface{})
	require.Len(t, results, 1)
	primary := results[0].(map[string]interface{})["primary"].(map[string]interface{})
	assert.Equal(t, "s3://bucket/a/variants.vcf.gz", primary["path"])
}

func TestSearchFilesToolRejectsBadParams(t *testing.T) {
	s := newTestServer(t, "s3://bucket/a/reads.bam")
	ctx := context.Background()

	_, err := s.handleSearchFiles(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "search_genomics_files",
			Arguments: map[string]interface{}{"search_terms": "not-an-array"},
		},
	})
	requireMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchFiles(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "search_genomics_files",
			Arguments: map[string]interface{}{"file_type": "spreadsheet"},
		},
	})
	requireMCPErrorCode(t, err, ErrorCodeInvalidFilter)

	_, err = s.handleSearchFiles(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "search_genomics_files",
			Arguments: map[string]interface{}{"max_results": float64(100000)},
		},
	})
	requireMCPErrorCode(t, err, ErrorCodeInvalidParams)
}

func TestSearchFilesPaginatedToolWalk(t *testing.T) {
	s := newTestServer(t,
		"s3://bucket/a/r1.bam",
		"s3://bucket/a/r2.bam",
		"s3://bucket/a/r3.bam",
	)

	seen := map[string]bool{}
	args := map[string]interface{}{"page_size": float64(1)}
	for i := 0; i < 10; i++ {
		payload := callTool(t, s.handleSearchFilesPaginated, "search_genomics_files_paginated", args)

		for _, r := range payload["results"].([]interface{}) {
			path := r.(map[string]interface{})["primary"].(map[string]interface{})["path"].(string)
			assert.False(t, seen[path], "duplicate %s", path)
			seen[path] = true
		}
		if payload["has_more"] != true {
			_, present := payload["next_token"]
			assert.False(t, present)
			break
		}
		args["continuation_token"] = payload["next_token"]
	}
	assert.Len(t, seen, 3)
}

func TestSearchFilesPaginatedToolMalformedTokenRestarts(t *testing.T) {
	s := newTestServer(t, "s3://bucket/a/r1.bam")

	payload := callTool(t, s.handleSearchFilesPaginated, "search_genomics_files_paginated", map[string]interface{}{
		"continuation_token": "gst1.garbage",
	})
	assert.Equal(t, float64(1), payload["page"])
	assert.Len(t, payload["results"].([]interface{}), 1)
}

func TestGetCapabilitiesTool(t *testing.T) {
	s := newTestServer(t)

	payload := callTool(t, s.handleGetCapabilities, "get_search_capabilities", map[string]interface{}{})

	assert.Equal(t, ServerName, payload["server"])
	backends := payload["backends"].([]interface{})
	assert.Contains(t, backends, "manifest")

	filters := payload["file_type_filters"].(map[string]interface{})["accepted"].([]interface{})
	assert.Contains(t, filters, "bam")
	assert.Contains(t, filters, "variant")
}

func requireMCPErrorCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "error should be an MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code)
}
