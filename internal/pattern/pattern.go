// Package pattern scores free-text search terms against candidate strings.
//
// Scoring combines three strategies per pattern (exact, substring, fuzzy) and
// keeps the best, then takes the best across patterns with a bounded bonus
// when several patterns match independently. Identical inputs always produce
// identical scores and reason ordering.
package pattern

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

const (
	// substringCap keeps substring matches strictly below an exact match.
	substringCap = 0.95
	// substringBase is the floor for any substring hit; coverage of the
	// candidate text scales the score up from here.
	substringBase = 0.6
	// fuzzyThreshold is the minimum character-sequence similarity for a
	// fuzzy hit to count at all.
	fuzzyThreshold = 0.6
	// fuzzyCap keeps fuzzy matches below substring matches of full coverage.
	fuzzyCap = 0.85
	// multiTermBonus is the per-extra-pattern multiplicative bonus applied
	// when more than one pattern independently scores above zero.
	multiTermBonus = 0.1
	// tagPenalty weights tag matches below path matches.
	tagPenalty = 0.8
)

// Score computes a 0-1 relevance score for text against the given patterns.
// Empty patterns are ignored. The returned reasons describe each contributing
// match in pattern order.
func Score(text string, patterns []string) (float64, []string) {
	if text == "" {
		return 0, nil
	}

	lowerText := strings.ToLower(text)
	var (
		best    float64
		matched int
		reasons []string
	)

	for _, p := range patterns {
		if p == "" {
			continue
		}
		lowerPat := strings.ToLower(p)

		score, reason := scoreOne(lowerText, lowerPat)
		if score <= 0 {
			continue
		}
		matched++
		reasons = append(reasons, reason)
		if score > best {
			best = score
		}
	}

	if best == 0 {
		return 0, nil
	}

	// Reward multiple independently-matching terms, capped at 1.0.
	if matched > 1 {
		best *= 1 + multiTermBonus*float64(matched-1)
		if best > 1 {
			best = 1
		}
		reasons = append(reasons, fmt.Sprintf("%d search terms matched", matched))
	}

	return best, reasons
}

// scoreOne returns the best single-strategy score for one pattern.
func scoreOne(text, pat string) (float64, string) {
	if text == pat {
		return 1.0, fmt.Sprintf("exact match: %q", pat)
	}

	var (
		best   float64
		reason string
	)

	if strings.Contains(text, pat) {
		coverage := float64(len(pat)) / float64(len(text))
		score := substringBase + (substringCap-substringBase)*coverage
		if score > substringCap {
			score = substringCap
		}
		best = score
		reason = fmt.Sprintf("substring match: %q", pat)
	}

	if sim := similarity(text, pat); sim >= fuzzyThreshold {
		score := sim * fuzzyCap
		if score > best {
			best = score
			reason = fmt.Sprintf("fuzzy match: %q (%.0f%% similar)", pat, sim*100)
		}
	}

	return best, reason
}

// ScorePath scores patterns against a full path, its base name, and the base
// name without its extension, keeping the best result.
func ScorePath(filePath string, patterns []string) (float64, []string) {
	base := path.Base(filePath)
	stem := strings.TrimSuffix(base, path.Ext(base))

	bestScore, bestReasons := Score(filePath, patterns)
	for _, candidate := range []string{base, stem} {
		if candidate == "" || candidate == filePath {
			continue
		}
		if score, reasons := Score(candidate, patterns); score > bestScore {
			bestScore, bestReasons = score, reasons
		}
	}
	return bestScore, bestReasons
}

// ScoreTags scores patterns against every tag's key, value, and the
// "key:value" concatenation, keeping the best and applying the tag penalty.
// Tag matches are weighted lower than path matches.
func ScoreTags(tags map[string]string, patterns []string) (float64, []string) {
	if len(tags) == 0 {
		return 0, nil
	}

	var (
		bestScore   float64
		bestReasons []string
		bestTag     string
	)

	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := tags[key]
		for _, candidate := range []string{key, value, key + ":" + value} {
			score, reasons := Score(candidate, patterns)
			if score > bestScore {
				bestScore, bestReasons, bestTag = score, reasons, key
			}
		}
	}

	if bestScore == 0 {
		return 0, nil
	}

	reasons := make([]string, 0, len(bestReasons))
	for _, r := range bestReasons {
		reasons = append(reasons, fmt.Sprintf("tag %q: %s", bestTag, r))
	}
	return bestScore * tagPenalty, reasons
}

// similarity computes a 0-1 character-sequence similarity between two strings
// as the ratio of their longest common subsequence to the longer length.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	lcs := lcsLength(a, b)
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(lcs) / float64(longer)
}

// lcsLength computes the longest-common-subsequence length with a rolling
// single-row table.
func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := row[j]
			if a[i-1] == b[j-1] {
				row[j] = prev + 1
			} else if row[j-1] > row[j] {
				row[j] = row[j-1]
			}
			prev = cur
		}
	}
	return row[len(b)]
}
