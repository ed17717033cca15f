package association

import (
	"strings"

	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// determineGroupType derives a descriptive tag from the primary file's type
// and which association categories are present.
func determineGroupType(primary types.GenomicsFile, associated []types.GenomicsFile) string {
	if len(associated) == 0 {
		return types.GroupSingleFile
	}

	pt, _ := filetype.BaseType(primary.Path)

	var hasBWA, hasDict, hasPlainIndex, hasFASTQ bool
	for _, a := range associated {
		at, ok := filetype.BaseType(a.Path)
		if !ok {
			continue
		}
		switch filetype.Category(at) {
		case types.CategoryBWAIndex:
			hasBWA = true
		case types.CategoryIndex:
			if at == types.FileTypeDICT {
				hasDict = true
			} else {
				hasPlainIndex = true
			}
		case types.CategorySequence:
			if at == types.FileTypeFASTQ {
				hasFASTQ = true
			}
		}
	}

	switch pt {
	case types.FileTypeBAM:
		return types.GroupBAMIndex
	case types.FileTypeCRAM:
		return types.GroupCRAMIndex
	case types.FileTypeVCF, types.FileTypeGVCF, types.FileTypeBCF:
		return types.GroupVCFIndex
	case types.FileTypeFASTQ:
		if hasFASTQ {
			return types.GroupFASTQPair
		}
	case types.FileTypeFASTA:
		parts := []string{"fasta"}
		if hasBWA {
			parts = append(parts, "bwa")
		}
		if hasDict {
			parts = append(parts, "dict")
		}
		if len(parts) > 1 {
			return strings.Join(parts, "_")
		}
		if hasPlainIndex {
			return types.GroupFASTAIndex
		}
	}

	if hasBWA {
		return types.GroupBWAIndexCollection
	}
	return "file_collection"
}

// completeGroupTypes are the group shapes that represent a complete known file
// set and earn the full association bonus. Kept as data so new shapes can be
// added without touching the bonus calculation.
var completeGroupTypes = map[string]bool{
	types.GroupBAMIndex:           true,
	types.GroupCRAMIndex:          true,
	types.GroupFASTQPair:          true,
	types.GroupVCFIndex:           true,
	types.GroupBWAIndexCollection: true,
	"fasta_bwa_dict":              true,
	"fasta_bwa":                   true,
}

// IsComplete reports whether a group type represents a complete file set.
func IsComplete(groupType string) bool {
	return completeGroupTypes[groupType]
}

// ScoreBonus maps group size and group type to a bounded additive score
// contribution. The bonus never exceeds 0.5.
func ScoreBonus(group types.FileGroup) float64 {
	if len(group.Associated) == 0 {
		return 0
	}

	bonus := 0.1 * float64(len(group.Associated))
	if bonus > 0.3 {
		bonus = 0.3
	}
	if completeGroupTypes[group.GroupType] {
		bonus += 0.2
	}
	if bonus > 0.5 {
		bonus = 0.5
	}
	return bonus
}

// SynthesizeVirtualIndexes adds virtual index-file records for managed-store
// alignment files whose index exists in the store but was not materialized as
// a listing entry. The synthesized records carry the primary's read-set
// provenance with the index slot, so the association passes group them
// correctly. Input order is preserved; synthesized files append at the end.
func SynthesizeVirtualIndexes(files []types.GenomicsFile) []types.GenomicsFile {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}

	out := files
	for _, f := range files {
		prov, ok := f.Provenance.(types.ReadSetProvenance)
		if !ok || prov.Source != "source1" {
			continue
		}

		ft, ok := filetype.BaseType(f.Path)
		if !ok {
			continue
		}
		var indexExt string
		switch ft {
		case types.FileTypeBAM:
			indexExt = ".bai"
		case types.FileTypeCRAM:
			indexExt = ".crai"
		default:
			continue
		}

		indexPath := f.Path + indexExt
		if present[indexPath] {
			continue
		}
		present[indexPath] = true

		indexProv := prov
		indexProv.Source = "index"
		out = append(out, types.GenomicsFile{
			Path:         indexPath,
			FileType:     indexFileType(indexExt),
			SourceSystem: f.SourceSystem,
			StorageClass: f.StorageClass,
			LastModified: f.LastModified,
			Provenance:   indexProv,
			Metadata:     map[string]string{"virtual": "true"},
		})
	}
	return out
}

func indexFileType(ext string) types.FileType {
	if ext == ".crai" {
		return types.FileTypeCRAI
	}
	return types.FileTypeBAI
}
