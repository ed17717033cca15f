// Package scoring computes relevance scores for search results.
//
// Four sub-scores are combined with fixed weights: pattern match (0.4), file
// type relevance (0.3), associations (0.2), and storage-tier accessibility
// (0.1). The combined score is clamped to [0, 1] and accompanied by ordered
// human-readable reasons.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jtreece/genomesearch-mcp/internal/association"
	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/internal/pattern"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// Sub-score weights. They sum to 1.0 so a perfect file scores 1.0.
const (
	weightPattern     = 0.4
	weightType        = 0.3
	weightAssociation = 0.2
	weightTier        = 0.1
)

// storageTierScores maps a storage tier name to its accessibility multiplier.
// Configuration data: extend the table, not the algorithm.
var storageTierScores = map[string]float64{
	"STANDARD":            1.0,
	"INTELLIGENT_TIERING": 0.95,
	"STANDARD_IA":         0.9,
	"ONEZONE_IA":          0.85,
	"GLACIER_IR":          0.8,
	"GLACIER":             0.7,
	"DEEP_ARCHIVE":        0.6,
	// HealthOmics store tiers
	"ACTIVE":  1.0,
	"ARCHIVE": 0.7,
}

// unknownTierScore is used for tiers missing from the table.
const unknownTierScore = 0.8

// metadataMatchFields are the semantically named metadata fields checked for
// pattern matches before the remaining string-valued entries.
var metadataMatchFields = []string{"name", "description", "sample_id", "subject_id"}

// relatedTypes declares which file types are considered related for type
// relevance. Symmetric: checked in both directions. Configuration data.
var relatedTypes = map[types.FileType][]types.FileType{
	types.FileTypeFASTQ: {types.FileTypeBAM, types.FileTypeCRAM},
	types.FileTypeBAM:   {types.FileTypeCRAM, types.FileTypeSAM},
	types.FileTypeFASTA: {types.FileTypeDICT},
	types.FileTypeVCF:   {types.FileTypeGVCF, types.FileTypeBCF},
}

// indexTypes declares which index type serves which data type. Symmetric.
var indexTypes = map[types.FileType]types.FileType{
	types.FileTypeBAM:   types.FileTypeBAI,
	types.FileTypeCRAM:  types.FileTypeCRAI,
	types.FileTypeFASTA: types.FileTypeFAI,
	types.FileTypeVCF:   types.FileTypeTBI,
}

// Engine computes relevance scores.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Score computes the combined relevance score for a file group given the
// search terms and the requested type filter. The group's primary file
// drives the pattern, type, and tier sub-scores.
func (e *Engine) Score(group types.FileGroup, terms []string, typeFilter string) (float64, []string) {
	file := group.Primary
	var reasons []string

	patternScore, patternReasons := e.patternScore(file, terms)
	reasons = append(reasons, patternReasons...)

	typeScore, typeReason := e.typeScore(file, typeFilter)
	if typeReason != "" {
		reasons = append(reasons, typeReason)
	}

	assocScore, assocReason := e.associationScore(group)
	if assocReason != "" {
		reasons = append(reasons, assocReason)
	}

	tierScore := e.tierScore(file.StorageClass)

	score := weightPattern*patternScore +
		weightType*typeScore +
		weightAssociation*assocScore +
		weightTier*tierScore

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score, reasons
}

// patternScore is the best of path, tag, and metadata matches. Absent search
// terms yield a neutral 0.5.
func (e *Engine) patternScore(file types.GenomicsFile, terms []string) (float64, []string) {
	if len(terms) == 0 {
		return 0.5, nil
	}

	best, reasons := pattern.ScorePath(file.Path, terms)

	if tagScore, tagReasons := pattern.ScoreTags(file.Tags, terms); tagScore > best {
		best, reasons = tagScore, tagReasons
	}
	if metaScore, metaReasons := e.metadataScore(file, terms); metaScore > best {
		best, reasons = metaScore, metaReasons
	}
	return best, reasons
}

// metadataScore matches terms against the semantically named metadata fields
// first, then every remaining string-valued metadata entry.
func (e *Engine) metadataScore(file types.GenomicsFile, terms []string) (float64, []string) {
	if len(file.Metadata) == 0 {
		return 0, nil
	}

	var (
		best    float64
		reasons []string
	)
	try := func(field, value string) {
		if value == "" {
			return
		}
		if score, r := pattern.Score(value, terms); score > best {
			best = score
			reasons = []string{fmt.Sprintf("metadata %q matched: %s", field, strings.Join(r, "; "))}
		}
	}

	checked := make(map[string]bool, len(metadataMatchFields))
	for _, field := range metadataMatchFields {
		checked[field] = true
		try(field, file.Metadata[field])
	}

	rest := make([]string, 0, len(file.Metadata))
	for field := range file.Metadata {
		if !checked[field] {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	for _, field := range rest {
		try(field, file.Metadata[field])
	}
	return best, reasons
}

// typeScore rates how well the file's type satisfies the requested filter.
// No filter yields a neutral 0.8.
func (e *Engine) typeScore(file types.GenomicsFile, typeFilter string) (float64, string) {
	if typeFilter == "" {
		return 0.8, ""
	}

	ft := file.FileType
	if ft == "" || ft == types.FileTypeUnknown {
		detected, ok := filetype.BaseType(file.Path)
		if !ok {
			return 0.3, ""
		}
		ft = detected
	}

	if filetype.TypeMatchesFilter(ft, typeFilter) {
		return 1.0, fmt.Sprintf("file type matches filter %q", typeFilter)
	}
	want := types.FileType(strings.ToLower(typeFilter))

	if typesRelated(ft, want) {
		return 0.8, fmt.Sprintf("file type %s related to filter %q", ft, typeFilter)
	}
	if indexRelated(ft, want) {
		return 0.7, fmt.Sprintf("file type %s indexes filter type %q", ft, typeFilter)
	}
	return 0.3, ""
}

// typesRelated reports whether a and b appear in the related-type table,
// checked symmetrically.
func typesRelated(a, b types.FileType) bool {
	for _, r := range relatedTypes[a] {
		if r == b {
			return true
		}
	}
	for _, r := range relatedTypes[b] {
		if r == a {
			return true
		}
	}
	return false
}

// indexRelated reports whether one of a and b is the index type of the other.
func indexRelated(a, b types.FileType) bool {
	return indexTypes[a] == b || indexTypes[b] == a
}

// associationScore starts from a neutral 0.5 baseline and adds the bounded
// group bonus: up to 0.3 scaled by associated-file count, plus 0.2 when the
// group type represents a complete file set.
func (e *Engine) associationScore(group types.FileGroup) (float64, string) {
	if len(group.Associated) == 0 {
		return 0.5, ""
	}

	score := 0.5 + association.ScoreBonus(group)

	reason := fmt.Sprintf("%d associated files", len(group.Associated))
	if association.IsComplete(group.GroupType) {
		reason += " (complete file set)"
	}
	return score, reason
}

// tierScore looks up the storage tier accessibility multiplier.
func (e *Engine) tierScore(storageClass string) float64 {
	if storageClass == "" {
		return unknownTierScore
	}
	if score, ok := storageTierScores[strings.ToUpper(storageClass)]; ok {
		return score
	}
	return unknownTierScore
}

// Rank sorts results by descending relevance score. The sort is stable, so
// ties keep their input order.
func Rank(results []types.ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}
