package types

// Group types produced by the association engine. GroupType is a free-form
// descriptive tag; these constants cover the common cases but backends and
// association rules may synthesize compound tags (e.g. "fasta_bwa_dict").
const (
	GroupSingleFile         = "single_file"
	GroupBAMIndex           = "bam_index"
	GroupCRAMIndex          = "cram_index"
	GroupFASTQPair          = "fastq_pair"
	GroupFASTAIndex         = "fasta_index"
	GroupVCFIndex           = "vcf_index"
	GroupBWAIndexCollection = "bwa_index_collection"
	GroupReadSet            = "read_set"
	GroupReference          = "reference"
)

// FileGroup is one primary file plus the companion files detected for it.
// Groups are built once per search by the association engine and are not
// persisted.
type FileGroup struct {
	Primary    GenomicsFile
	Associated []GenomicsFile
	GroupType  string
}

// Size returns the total number of files in the group, primary included.
func (g *FileGroup) Size() int {
	return 1 + len(g.Associated)
}

// ScoredResult is a FileGroup with its relevance score and the reasons the
// scoring engine assigned it.
type ScoredResult struct {
	Primary        GenomicsFile
	Associated     []GenomicsFile
	GroupType      string
	RelevanceScore float64
	MatchReasons   []string
}

// Validate checks the result for structural problems.
func (r *ScoredResult) Validate() error {
	if r.Primary.Path == "" {
		return ErrEmptyPath
	}
	if r.RelevanceScore < 0 || r.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}
	return nil
}
