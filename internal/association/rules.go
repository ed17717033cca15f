package association

import (
	"regexp"
	"strings"
)

// indexSuffixes are stripped when normalizing a path to its index-set base.
// Longest first so compound suffixes win; the ".64." BWA variants collapse to
// the same base as their plain counterparts.
var indexSuffixes = []string{
	".64.amb", ".64.ann", ".64.bwt", ".64.pac", ".64.sa",
	".amb", ".ann", ".bwt", ".pac", ".sa",
	".crai", ".dict",
	".bai", ".csi", ".tbi", ".fai", ".idx",
}

// pairRule associates a primary file, identified by suffix regex, with the
// companion paths produced by its templates. Templates use "{path}" for the
// full primary path and "{base}" for the path with the matched suffix removed.
type pairRule struct {
	primary   *regexp.Regexp
	templates []string
	groupType string
	// exts lists the plain extensions this rule applies to, used to build
	// the extension-to-rule lookup that limits which rules are tried.
	exts []string
}

var pairRules = []pairRule{
	{
		primary:   regexp.MustCompile(`(?i)\.bam$`),
		templates: []string{"{path}.bai", "{base}.bai"},
		groupType: "bam_index",
		exts:      []string{".bam"},
	},
	{
		primary:   regexp.MustCompile(`(?i)\.cram$`),
		templates: []string{"{path}.crai", "{base}.crai"},
		groupType: "cram_index",
		exts:      []string{".cram"},
	},
	{
		primary:   regexp.MustCompile(`(?i)\.(fasta|fa|fna)(\.gz)?$`),
		templates: []string{"{path}.fai", "{base}.dict"},
		groupType: "fasta_index",
		exts:      []string{".fasta", ".fa", ".fna", ".gz"},
	},
	{
		primary: regexp.MustCompile(`(?i)\.(fasta|fa|fna)$`),
		templates: []string{
			"{path}.amb", "{path}.ann", "{path}.bwt", "{path}.pac", "{path}.sa",
			"{path}.64.amb", "{path}.64.ann", "{path}.64.bwt", "{path}.64.pac", "{path}.64.sa",
		},
		groupType: "bwa_index_collection",
		exts:      []string{".fasta", ".fa", ".fna"},
	},
	{
		primary:   regexp.MustCompile(`(?i)\.(vcf|vcf\.gz|gvcf|gvcf\.gz|bcf)$`),
		templates: []string{"{path}.tbi", "{path}.csi", "{path}.idx"},
		groupType: "vcf_index",
		exts:      []string{".vcf", ".gz", ".gvcf", ".bcf"},
	},
}

// fastqPairConventions maps an R1 marker to its R2 counterpart. Four naming
// conventions are recognized.
var fastqPairConventions = [][2]string{
	{"_R1", "_R2"},
	{".R1", ".R2"},
	{"_1.", "_2."},
	{".1.", ".2."},
}

var fastqSuffix = regexp.MustCompile(`(?i)\.(fastq|fq)(\.gz)?$`)

// ruleIndex maps a plain lowercase extension to the pairRules worth trying for
// a path with that extension, so each file only consults a few rules.
var ruleIndex = func() map[string][]int {
	idx := make(map[string][]int)
	for i, rule := range pairRules {
		for _, ext := range rule.exts {
			idx[ext] = append(idx[ext], i)
		}
	}
	return idx
}()

// normalizeIndexBase strips one known index suffix from path,
// case-insensitively. The second return reports whether anything was removed.
func normalizeIndexBase(path string) (string, bool) {
	lower := strings.ToLower(path)
	for _, suffix := range indexSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return path[:len(path)-len(suffix)], true
		}
	}
	return path, false
}

// lastExt returns the final dot-extension of path, lowercased.
func lastExt(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}

// candidateRules returns the pair rules applicable to the path's extension.
func candidateRules(path string) []pairRule {
	var out []pairRule
	for _, i := range ruleIndex[lastExt(path)] {
		if pairRules[i].primary.MatchString(path) {
			out = append(out, pairRules[i])
		}
	}
	return out
}

// expandTemplates renders a rule's templates against a concrete primary path.
func (r pairRule) expandTemplates(path string) []string {
	loc := r.primary.FindStringIndex(path)
	if loc == nil {
		return nil
	}
	base := path[:loc[0]]
	out := make([]string, 0, len(r.templates))
	for _, tpl := range r.templates {
		s := strings.ReplaceAll(tpl, "{path}", path)
		s = strings.ReplaceAll(s, "{base}", base)
		out = append(out, s)
	}
	return out
}

// fastqMates returns the possible mate paths for an R1-style FASTQ file, or
// nil when the path is not a recognizable first-in-pair read file.
func fastqMates(path string) []string {
	if !fastqSuffix.MatchString(path) {
		return nil
	}
	var mates []string
	for _, conv := range fastqPairConventions {
		if i := strings.LastIndex(path, conv[0]); i >= 0 {
			mates = append(mates, path[:i]+conv[1]+path[i+len(conv[0]):])
		}
	}
	return mates
}

// isSecondInPair reports whether path looks like the R2 side of a pair, which
// must not become a pair primary itself.
func isSecondInPair(path string) bool {
	if !fastqSuffix.MatchString(path) {
		return false
	}
	for _, conv := range fastqPairConventions {
		if strings.Contains(path, conv[1]) {
			return true
		}
	}
	return false
}

// dictPathFor returns the sequence-dictionary path for a FASTA file: the
// extension (with any compression suffix) is replaced by ".dict".
func dictPathFor(fastaPath string) string {
	lower := strings.ToLower(fastaPath)
	for _, ext := range []string{".fasta.gz", ".fa.gz", ".fna.gz", ".fasta", ".fa", ".fna"} {
		if strings.HasSuffix(lower, ext) {
			return fastaPath[:len(fastaPath)-len(ext)] + ".dict"
		}
	}
	return fastaPath + ".dict"
}

// s3Associates returns the object-storage naming-convention companions for a
// primary path. These are consulted before the generic regex rules.
func s3Associates(path string) []string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".bam"):
		return []string{path + ".bai"}
	case strings.HasSuffix(lower, ".cram"):
		return []string{path + ".crai"}
	case strings.HasSuffix(lower, ".vcf.gz"), strings.HasSuffix(lower, ".vcf"):
		return []string{path + ".tbi"}
	}
	return nil
}
