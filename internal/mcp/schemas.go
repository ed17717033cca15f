package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jtreece/genomesearch-mcp/internal/filetype"
)

// searchFilesTool returns the tool definition for search_genomics_files
func searchFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_genomics_files",
		Description: "Search configured genomics storage backends (S3, HealthOmics sequence and reference stores) for files matching search terms, with associated files grouped and ranked by relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"search_terms": map[string]interface{}{
					"type":        "array",
					"description": "Terms matched against file paths, tags, and store metadata (sample IDs, subject IDs, names). Empty searches return everything, neutrally ranked.",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"file_type": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a file type or category",
					"enum":        filetype.Filters(),
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of result groups to return",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ranked result groups to skip",
					"default":     0,
					"minimum":     0,
				},
			},
		},
	}
}

// searchFilesPaginatedTool returns the tool definition for
// search_genomics_files_paginated
func searchFilesPaginatedTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_genomics_files_paginated",
		Description: "Page through large genomics search result sets using continuation tokens. Pass the next_token from the previous page to resume; omit it to start a new walk.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"search_terms": map[string]interface{}{
					"type":        "array",
					"description": "Terms matched against file paths, tags, and store metadata. Must stay identical across pages of one walk.",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"file_type": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a file type or category",
					"enum":        filetype.Filters(),
				},
				"page_size": map[string]interface{}{
					"type":        "integer",
					"description": "Result groups per page",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"continuation_token": map[string]interface{}{
					"type":        "string",
					"description": "Opaque token from the previous page's next_token. An expired or malformed token restarts the walk from the first page.",
				},
			},
		},
	}
}

// capabilitiesTool returns the tool definition for get_search_capabilities
func capabilitiesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_search_capabilities",
		Description: "List the configured storage backends, supported file types and categories, and pagination limits",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
