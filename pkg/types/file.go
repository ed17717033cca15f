package types

import (
	"time"
)

// FileType identifies a concrete genomics file format.
type FileType string

const (
	// Sequence data
	FileTypeFASTQ FileType = "fastq"
	FileTypeFASTA FileType = "fasta"

	// Alignment data
	FileTypeBAM  FileType = "bam"
	FileTypeCRAM FileType = "cram"
	FileTypeSAM  FileType = "sam"

	// Variant data
	FileTypeVCF  FileType = "vcf"
	FileTypeGVCF FileType = "gvcf"
	FileTypeBCF  FileType = "bcf"

	// Annotation data
	FileTypeBED FileType = "bed"
	FileTypeGFF FileType = "gff"
	FileTypeGTF FileType = "gtf"

	// Index files
	FileTypeBAI  FileType = "bai"
	FileTypeCRAI FileType = "crai"
	FileTypeCSI  FileType = "csi"
	FileTypeTBI  FileType = "tbi"
	FileTypeIDX  FileType = "idx"
	FileTypeFAI  FileType = "fai"
	FileTypeDICT FileType = "dict"

	// BWA index files
	FileTypeAMB FileType = "amb"
	FileTypeANN FileType = "ann"
	FileTypeBWT FileType = "bwt"
	FileTypePAC FileType = "pac"
	FileTypeSA  FileType = "sa"

	FileTypeUnknown FileType = "unknown"
)

// FileCategory groups concrete file types into broad classes used by filters
// and the scoring engine.
type FileCategory string

const (
	CategorySequence   FileCategory = "sequence"
	CategoryAlignment  FileCategory = "alignment"
	CategoryVariant    FileCategory = "variant"
	CategoryAnnotation FileCategory = "annotation"
	CategoryIndex      FileCategory = "index"
	CategoryBWAIndex   FileCategory = "bwa_index"
	CategoryUnknown    FileCategory = "unknown"
)

// SourceSystem identifies which backend a file was discovered in.
type SourceSystem string

const (
	SourceS3             SourceSystem = "s3"
	SourceSequenceStore  SourceSystem = "sequence_store"
	SourceReferenceStore SourceSystem = "reference_store"
	SourceManifest       SourceSystem = "manifest"
)

// GenomicsFile represents a single file discovered in a storage backend.
// The Path is the identity key and is unique within one search result set.
// Instances are built by backend adapters and treated as immutable downstream.
type GenomicsFile struct {
	// Identification
	Path         string
	FileType     FileType
	SourceSystem SourceSystem

	// Storage attributes
	SizeBytes    int64
	StorageClass string
	LastModified time.Time

	// Backend tags (object tags, store tags)
	Tags map[string]string

	// Backend-specific provenance (tagged union, may be nil)
	Provenance Provenance

	// Metadata holds backend fields with no cross-backend meaning.
	Metadata map[string]string
}

// Validate checks the file for structural problems.
func (f *GenomicsFile) Validate() error {
	if f.Path == "" {
		return ErrEmptyPath
	}
	if f.SizeBytes < 0 {
		return ErrNegativeSize
	}
	return nil
}

// Tag returns the tag value for key, or "" when absent.
func (f *GenomicsFile) Tag(key string) string {
	if f.Tags == nil {
		return ""
	}
	return f.Tags[key]
}
