package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/internal/search"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeInvalidFilter = -32001 // Unknown file type filter
	ErrorCodeSearchFailed  = -32002 // Search execution failed
)

// handleSearchFiles handles the search_genomics_files tool invocation
func (s *Server) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	terms, err := getStringSlice(args, "search_terms")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "search_terms must be an array of strings", map[string]interface{}{
			"param":  "search_terms",
			"reason": err.Error(),
		})
	}

	typeFilter := getStringDefault(args, "file_type", "")
	maxResults := getIntDefault(args, "max_results", 10)
	offset := getIntDefault(args, "offset", 0)

	resp, err := s.engine.Search(ctx, search.Request{
		Terms:      terms,
		TypeFilter: typeFilter,
		MaxResults: maxResults,
		Offset:     offset,
	})
	if err != nil {
		return nil, searchError(err)
	}

	response := map[string]interface{}{
		"results":           formatResults(resp.Results),
		"total_found":       resp.TotalFound,
		"searched_backends": formatStatuses(resp.SearchedBackends),
		"duration_ms":       resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchFilesPaginated handles the search_genomics_files_paginated
// tool invocation
func (s *Server) handleSearchFilesPaginated(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	terms, err := getStringSlice(args, "search_terms")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "search_terms must be an array of strings", map[string]interface{}{
			"param":  "search_terms",
			"reason": err.Error(),
		})
	}

	typeFilter := getStringDefault(args, "file_type", "")
	pageSize := getIntDefault(args, "page_size", 10)
	token := getStringDefault(args, "continuation_token", "")

	resp, err := s.engine.SearchPaginated(ctx, search.PaginatedRequest{
		Terms:      terms,
		TypeFilter: typeFilter,
		PageSize:   pageSize,
		Token:      token,
	})
	if err != nil {
		return nil, searchError(err)
	}

	response := map[string]interface{}{
		"results":           formatResults(resp.Results),
		"page":              resp.Page,
		"has_more":          resp.HasMore,
		"searched_backends": formatStatuses(resp.SearchedBackends),
		"duration_ms":       resp.Duration.Milliseconds(),
		"metrics": map[string]interface{}{
			"objects_scanned": resp.Metrics.ObjectsScanned,
			"cache_hit_ratio": resp.Metrics.CacheHitRatio,
			"buffer_overflow": resp.Metrics.BufferOverflow,
		},
	}
	if resp.NextToken != "" {
		response["next_token"] = resp.NextToken
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCapabilities handles the get_search_capabilities tool invocation
func (s *Server) handleGetCapabilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := make([]string, len(s.backends))
	for i, be := range s.backends {
		names[i] = be.Name()
	}

	response := map[string]interface{}{
		"server":   ServerName,
		"version":  ServerVersion,
		"backends": names,
		"file_type_filters": map[string]interface{}{
			"accepted": filetype.Filters(),
		},
		"pagination": map[string]interface{}{
			"max_results":              s.cfg.MaxResults,
			"cursor_strategy_enabled":  s.cfg.EnableCursorPagination,
			"continuation_token_ttl_s": int(s.cfg.PaginationCacheTTL.Seconds()),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchError maps engine validation errors onto MCP parameter errors;
// anything else is an internal failure.
func searchError(err error) error {
	switch {
	case errors.Is(err, search.ErrInvalidFilter):
		return newMCPError(ErrorCodeInvalidFilter, err.Error(), map[string]interface{}{
			"param": "file_type",
		})
	case errors.Is(err, search.ErrInvalidMaxResult):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "max_results",
		})
	default:
		return newMCPError(ErrorCodeSearchFailed, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// formatResults projects scored groups into the tool response shape.
func formatResults(results []types.ScoredResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		entry := map[string]interface{}{
			"primary":         formatFile(r.Primary),
			"relevance_score": r.RelevanceScore,
			"match_reasons":   r.MatchReasons,
		}
		if r.GroupType != "" {
			entry["group_type"] = r.GroupType
		}
		if len(r.Associated) > 0 {
			associated := make([]map[string]interface{}, len(r.Associated))
			for j, f := range r.Associated {
				associated[j] = formatFile(f)
			}
			entry["associated"] = associated
		}
		out[i] = entry
	}
	return out
}

func formatFile(f types.GenomicsFile) map[string]interface{} {
	entry := map[string]interface{}{
		"path":          f.Path,
		"file_type":     string(f.FileType),
		"source_system": string(f.SourceSystem),
		"size_bytes":    f.SizeBytes,
		"storage_class": f.StorageClass,
	}
	if !f.LastModified.IsZero() {
		entry["last_modified"] = f.LastModified.Format("2006-01-02T15:04:05Z07:00")
	}
	if len(f.Tags) > 0 {
		entry["tags"] = f.Tags
	}
	if len(f.Metadata) > 0 {
		entry["metadata"] = f.Metadata
	}
	return entry
}

func formatStatuses(statuses []search.BackendStatus) []map[string]interface{} {
	out := make([]map[string]interface{}, len(statuses))
	for i, st := range statuses {
		entry := map[string]interface{}{
			"name":        st.Name,
			"files":       st.Files,
			"duration_ms": st.Duration.Milliseconds(),
		}
		if st.Error != "" {
			entry["error"] = st.Error
		}
		out[i] = entry
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getStringSlice extracts an optional array-of-strings parameter.
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s is not an array", key)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not a string", key, i)
		}
		out = append(out, s)
	}
	return out, nil
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
