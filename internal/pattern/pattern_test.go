package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreExactMatch(t *testing.T) {
	score, reasons := Score("NA12878", []string{"na12878"})
	assert.Equal(t, 1.0, score)
	assert.Contains(t, reasons[0], "exact match")
}

func TestScoreSubstringMatch(t *testing.T) {
	score, reasons := Score("na12878_sorted.bam", []string{"na12878"})
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
	assert.Contains(t, reasons[0], "substring match")
}

func TestScoreSubstringCoverageScales(t *testing.T) {
	long, _ := Score("na12878.bam", []string{"na12878"})
	short, _ := Score("na12878_with_a_much_longer_name.bam", []string{"na12878"})
	assert.Greater(t, long, short, "higher coverage should score higher")
}

func TestScoreFuzzyMatch(t *testing.T) {
	// One character off: no substring hit, high sequence similarity.
	score, reasons := Score("na12878", []string{"na12879"})
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, fuzzyCap)
	assert.Contains(t, reasons[0], "fuzzy match")
}

func TestScoreNoMatch(t *testing.T) {
	score, reasons := Score("na12878.bam", []string{"zzzzqqqq"})
	assert.Equal(t, 0.0, score)
	assert.Empty(t, reasons)
}

func TestScoreMultiTermBonus(t *testing.T) {
	single, _ := Score("na12878_chr1.bam", []string{"na12878"})
	multi, _ := Score("na12878_chr1.bam", []string{"na12878", "chr1"})
	assert.Greater(t, multi, single)
	assert.LessOrEqual(t, multi, 1.0)
}

func TestScoreBonusCappedAtOne(t *testing.T) {
	score, _ := Score("abc", []string{"abc", "ab", "bc", "a", "b", "c"})
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreIgnoresEmptyPatterns(t *testing.T) {
	score, _ := Score("na12878.bam", []string{"", "na12878", ""})
	withOne, _ := Score("na12878.bam", []string{"na12878"})
	assert.Equal(t, withOne, score)
}

func TestScoreDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		s1, r1 := Score("na12878_sorted.bam", []string{"na12878", "sorted"})
		s2, r2 := Score("na12878_sorted.bam", []string{"na12878", "sorted"})
		assert.Equal(t, s1, s2)
		assert.Equal(t, r1, r2)
	}
}

func TestScorePathUsesBasename(t *testing.T) {
	// Exact match on the stem should beat a substring match on the path.
	score, _ := ScorePath("s3://bucket/samples/na12878.bam", []string{"na12878"})
	full, _ := Score("s3://bucket/samples/na12878.bam", []string{"na12878"})
	assert.Greater(t, score, full)
	assert.Equal(t, 1.0, score, "stem should match exactly")
}

func TestScoreTagsPenalized(t *testing.T) {
	tags := map[string]string{"sample": "na12878"}
	tagScore, reasons := ScoreTags(tags, []string{"na12878"})
	pathScore, _ := Score("na12878", []string{"na12878"})
	assert.Equal(t, pathScore*tagPenalty, tagScore)
	assert.Contains(t, reasons[0], `tag "sample"`)
}

func TestScoreTagsKeyValueConcat(t *testing.T) {
	tags := map[string]string{"project": "alpha"}
	score, _ := ScoreTags(tags, []string{"project:alpha"})
	assert.Equal(t, tagPenalty, score, "exact key:value match, tag-penalized")
}

func TestScoreTagsEmpty(t *testing.T) {
	score, reasons := ScoreTags(nil, []string{"x"})
	assert.Equal(t, 0.0, score)
	assert.Empty(t, reasons)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 0.0, similarity("", "abc"))
	assert.InDelta(t, 0.857, similarity("na12878", "na12879"), 0.01)
}
