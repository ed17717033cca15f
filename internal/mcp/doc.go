// Package mcp implements the Model Context Protocol (MCP) server for
// genomesearch.
//
// The MCP server exposes three tools to AI assistants:
//   - search_genomics_files: Search storage backends for genomics files
//   - search_genomics_files_paginated: Page through large result sets
//   - get_search_capabilities: List configured backends and filter vocabulary
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output.
// Logging goes to stderr; stdout is reserved for the protocol.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	genomesearch serve
//
// It then listens on stdin for MCP protocol messages and writes responses to
// stdout.
//
// # Tool: search_genomics_files
//
// One-shot ranked search across every configured backend:
//
//	Request:
//	{
//	  "name": "search_genomics_files",
//	  "arguments": {
//	    "search_terms": ["sample42", "chr1"],
//	    "file_type": "bam",
//	    "max_results": 10
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "primary": {
//	        "path": "s3://bucket/sample42/reads.bam",
//	        "file_type": "bam",
//	        "storage_class": "STANDARD"
//	      },
//	      "associated": [
//	        {"path": "s3://bucket/sample42/reads.bam.bai", "file_type": "bai"}
//	      ],
//	      "group_type": "bam_index",
//	      "relevance_score": 0.92,
//	      "match_reasons": ["path contains 'sample42'"]
//	    }
//	  ],
//	  "total_found": 1,
//	  "searched_backends": [{"name": "s3", "files": 2, "duration_ms": 140}]
//	}
//
// # Tool: search_genomics_files_paginated
//
// Token-driven walk over large result sets. Pass the next_token from the
// previous page to resume; an expired or malformed token restarts the walk
// at page one instead of failing.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (malformed arguments, max_results out of range)
//   - -32603: Internal error
//   - -32001: Unknown file type filter
//   - -32002: Search execution failed
package mcp
