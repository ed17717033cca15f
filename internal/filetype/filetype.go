// Package filetype maps file paths to genomics file types and categories.
//
// Detection is a pure function over static tables. The longest known extension
// suffix wins, so a compound suffix like ".fastq.gz" is preferred over a
// hypothetical shorter match, and matching is case-insensitive.
package filetype

import (
	"sort"
	"strings"

	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// extensionTable maps a known extension suffix (leading dot included) to its
// file type. Compressed variants of typed extensions are listed explicitly so
// Detect can resolve them without stripping.
var extensionTable = map[string]types.FileType{
	// Sequence data
	".fastq":    types.FileTypeFASTQ,
	".fq":       types.FileTypeFASTQ,
	".fastq.gz": types.FileTypeFASTQ,
	".fq.gz":    types.FileTypeFASTQ,
	".fasta":    types.FileTypeFASTA,
	".fa":       types.FileTypeFASTA,
	".fna":      types.FileTypeFASTA,
	".fasta.gz": types.FileTypeFASTA,
	".fa.gz":    types.FileTypeFASTA,
	".fna.gz":   types.FileTypeFASTA,

	// Alignment data
	".bam":  types.FileTypeBAM,
	".cram": types.FileTypeCRAM,
	".sam":  types.FileTypeSAM,

	// Variant data
	".vcf":      types.FileTypeVCF,
	".vcf.gz":   types.FileTypeVCF,
	".gvcf":     types.FileTypeGVCF,
	".gvcf.gz":  types.FileTypeGVCF,
	".g.vcf":    types.FileTypeGVCF,
	".g.vcf.gz": types.FileTypeGVCF,
	".bcf":      types.FileTypeBCF,

	// Annotation data
	".bed":     types.FileTypeBED,
	".bed.gz":  types.FileTypeBED,
	".gff":     types.FileTypeGFF,
	".gff3":    types.FileTypeGFF,
	".gff.gz":  types.FileTypeGFF,
	".gff3.gz": types.FileTypeGFF,
	".gtf":     types.FileTypeGTF,
	".gtf.gz":  types.FileTypeGTF,

	// Index files
	".bai":  types.FileTypeBAI,
	".crai": types.FileTypeCRAI,
	".csi":  types.FileTypeCSI,
	".tbi":  types.FileTypeTBI,
	".idx":  types.FileTypeIDX,
	".fai":  types.FileTypeFAI,
	".dict": types.FileTypeDICT,

	// BWA index files, including the 64-bit variants
	".amb":    types.FileTypeAMB,
	".ann":    types.FileTypeANN,
	".bwt":    types.FileTypeBWT,
	".pac":    types.FileTypePAC,
	".sa":     types.FileTypeSA,
	".64.amb": types.FileTypeAMB,
	".64.ann": types.FileTypeANN,
	".64.bwt": types.FileTypeBWT,
	".64.pac": types.FileTypePAC,
	".64.sa":  types.FileTypeSA,
}

// compressionSuffixes are stripped by BaseType before detection.
var compressionSuffixes = []string{".gz", ".bz2", ".xz", ".lz4", ".zst"}

// categoryTable maps concrete file types to their broad category.
var categoryTable = map[types.FileType]types.FileCategory{
	types.FileTypeFASTQ: types.CategorySequence,
	types.FileTypeFASTA: types.CategorySequence,
	types.FileTypeBAM:   types.CategoryAlignment,
	types.FileTypeCRAM:  types.CategoryAlignment,
	types.FileTypeSAM:   types.CategoryAlignment,
	types.FileTypeVCF:   types.CategoryVariant,
	types.FileTypeGVCF:  types.CategoryVariant,
	types.FileTypeBCF:   types.CategoryVariant,
	types.FileTypeBED:   types.CategoryAnnotation,
	types.FileTypeGFF:   types.CategoryAnnotation,
	types.FileTypeGTF:   types.CategoryAnnotation,
	types.FileTypeBAI:   types.CategoryIndex,
	types.FileTypeCRAI:  types.CategoryIndex,
	types.FileTypeCSI:   types.CategoryIndex,
	types.FileTypeTBI:   types.CategoryIndex,
	types.FileTypeIDX:   types.CategoryIndex,
	types.FileTypeFAI:   types.CategoryIndex,
	types.FileTypeDICT:  types.CategoryIndex,
	types.FileTypeAMB:   types.CategoryBWAIndex,
	types.FileTypeANN:   types.CategoryBWAIndex,
	types.FileTypeBWT:   types.CategoryBWAIndex,
	types.FileTypePAC:   types.CategoryBWAIndex,
	types.FileTypeSA:    types.CategoryBWAIndex,
}

// filterAliases maps friendly filter names to either a file type or category.
var filterAliases = map[string]string{
	"reads":       string(types.FileTypeFASTQ),
	"ref":         string(types.FileTypeFASTA),
	"reference":   string(types.FileTypeFASTA),
	"alignments":  string(types.CategoryAlignment),
	"variants":    string(types.CategoryVariant),
	"annotations": string(types.CategoryAnnotation),
}

// sortedExtensions holds the known extensions longest-first so compound
// suffixes are tried before shorter generic ones.
var sortedExtensions = func() []string {
	exts := make([]string, 0, len(extensionTable))
	for ext := range extensionTable {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if len(exts[i]) != len(exts[j]) {
			return len(exts[i]) > len(exts[j])
		}
		return exts[i] < exts[j]
	})
	return exts
}()

// Detect returns the file type for path based on its extension.
// The second return value is false when no known extension matches.
func Detect(path string) (types.FileType, bool) {
	lower := strings.ToLower(path)
	for _, ext := range sortedExtensions {
		if strings.HasSuffix(lower, ext) {
			return extensionTable[ext], true
		}
	}
	return types.FileTypeUnknown, false
}

// BaseType strips one trailing compression suffix before detection, so the
// compressed variant of a typed extension resolves to its base type even when
// the compound suffix is not in the table.
func BaseType(path string) (types.FileType, bool) {
	lower := strings.ToLower(path)
	for _, suffix := range compressionSuffixes {
		if strings.HasSuffix(lower, suffix) {
			lower = strings.TrimSuffix(lower, suffix)
			break
		}
	}
	return Detect(lower)
}

// Category returns the broad category for a file type.
func Category(ft types.FileType) types.FileCategory {
	if cat, ok := categoryTable[ft]; ok {
		return cat
	}
	return types.CategoryUnknown
}

// ValidFilter reports whether filter names a known file type, category, or
// alias. An empty filter is valid and matches everything.
func ValidFilter(filter string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	if _, ok := filterAliases[f]; ok {
		return true
	}
	if _, ok := categoryTable[types.FileType(f)]; ok {
		return true
	}
	switch types.FileCategory(f) {
	case types.CategorySequence, types.CategoryAlignment, types.CategoryVariant,
		types.CategoryAnnotation, types.CategoryIndex, types.CategoryBWAIndex:
		return true
	}
	return false
}

// MatchesFilter reports whether the file at path satisfies the given filter.
// The filter may be an exact type name, a category name, or an alias.
func MatchesFilter(path string, filter string) bool {
	if filter == "" {
		return true
	}
	ft, ok := BaseType(path)
	if !ok {
		return false
	}
	return TypeMatchesFilter(ft, filter)
}

// TypeMatchesFilter reports whether an already-known file type satisfies the
// filter. Used by backends whose records declare their type instead of
// carrying a detectable extension.
func TypeMatchesFilter(ft types.FileType, filter string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	if resolved, ok := filterAliases[f]; ok {
		f = resolved
	}
	if string(ft) == f {
		return true
	}
	return string(Category(ft)) == f
}

// Filters returns the filter vocabulary accepted by MatchesFilter: concrete
// type names, category names, and aliases. Used by tool schemas and request
// validation.
func Filters() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, ft := range knownTypes() {
		add(string(ft))
	}
	for _, cat := range []types.FileCategory{
		types.CategorySequence, types.CategoryAlignment, types.CategoryVariant,
		types.CategoryAnnotation, types.CategoryIndex, types.CategoryBWAIndex,
	} {
		add(string(cat))
	}
	for alias := range filterAliases {
		add(alias)
	}
	sort.Strings(out)
	return out
}

// knownTypes returns the concrete file types in a stable order.
func knownTypes() []types.FileType {
	fts := make([]types.FileType, 0, len(categoryTable))
	for ft := range categoryTable {
		fts = append(fts, ft)
	}
	sort.Slice(fts, func(i, j int) bool { return fts[i] < fts[j] })
	return fts
}
