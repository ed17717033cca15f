// Package types provides shared type definitions for the genomesearch MCP server.
//
// This package defines the domain types used across backends, the association
// engine, the scoring engine, and the search orchestrator.
//
// # Core Types
//
// GenomicsFile represents a single file discovered in a storage backend:
//
//	file := types.GenomicsFile{
//	    Path:         "s3://genomics-data/samples/NA12878.bam",
//	    FileType:     types.FileTypeBAM,
//	    SizeBytes:    1 << 30,
//	    StorageClass: "STANDARD",
//	    SourceSystem: types.SourceS3,
//	}
//
// Identity is the Path: within one search result set no two files share a path.
// A GenomicsFile is immutable once constructed by a backend adapter; downstream
// stages (association, scoring, ranking) treat it as read-only.
//
// FileGroup clusters a primary file with its companion files (indexes, read
// pairs, dictionaries):
//
//	group := types.FileGroup{
//	    Primary:    bam,
//	    Associated: []types.GenomicsFile{bai},
//	    GroupType:  "bam_index",
//	}
//
// ScoredResult attaches a relevance score and human-readable match reasons to a
// group. Scores are normalized to [0, 1], higher is better.
//
// # Provenance
//
// Backend-specific fields are carried in a tagged union (Provenance) rather than
// an open string map, so each backend's metadata keeps its own strongly-typed
// shape. A generic Metadata side-table remains for fields with no cross-backend
// meaning.
//
// # Validation
//
// Domain types implement validation methods to ensure data integrity:
//
//	if err := result.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package types
