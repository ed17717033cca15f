package types

// Provenance carries backend-specific fields for a GenomicsFile as a tagged
// union. Each backend contributes its own strongly-typed variant instead of
// stuffing values into a generic string map.
type Provenance interface {
	// Kind returns the provenance discriminator, matching the SourceSystem
	// of the backend that produced the file.
	Kind() SourceSystem
}

// S3Provenance describes an object discovered by the S3 backend.
type S3Provenance struct {
	Bucket string
	Key    string
	ETag   string
}

// Kind implements Provenance.
func (S3Provenance) Kind() SourceSystem { return SourceS3 }

// ReadSetProvenance describes a file that belongs to a HealthOmics read set.
type ReadSetProvenance struct {
	SequenceStoreID string
	ReadSetID       string
	// Source is which slot in the read set the file came from:
	// "source1", "source2", or "index".
	Source string
	// Paired reports whether the read set holds paired-end data.
	Paired bool
	// SampleID and SubjectID are the read-set level identifiers.
	SampleID  string
	SubjectID string
}

// Kind implements Provenance.
func (ReadSetProvenance) Kind() SourceSystem { return SourceSequenceStore }

// ReferenceProvenance describes a reference genome stored in a HealthOmics
// reference store.
type ReferenceProvenance struct {
	ReferenceStoreID string
	ReferenceID      string
	// Source is "source" for the reference FASTA or "index" for its index.
	Source string
	MD5    string
}

// Kind implements Provenance.
func (ReferenceProvenance) Kind() SourceSystem { return SourceReferenceStore }
