// Package dedupe removes exact and near-duplicate review candidates
// collected across all extractors of one job.
package dedupe

import (
	"strings"

	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/pkg/utils"
)

// Near-duplicate comparison only considers a normalized prefix: duplicates
// scraped from different surfaces usually diverge in trailing boilerplate,
// not in the opening text.
const comparePrefixLen = 200

// DefaultThreshold is an empirical constant; prefer the configured value.
const DefaultThreshold = 0.90

// Dedupe returns candidates with exact and near duplicates removed.
// Order-preserving, first occurrence wins. The near-duplicate pass is
// greedy: each candidate is compared against already-kept ones only, which
// is an accepted approximation. O(n²) in kept count; n is capped by
// per-source fetch limits.
func Dedupe(candidates []entity.RawCandidate, threshold float64) []entity.RawCandidate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	seen := make(map[string]struct{}, len(candidates))
	kept := make([]entity.RawCandidate, 0, len(candidates))
	keys := make([]string, 0, len(candidates))

	for _, cand := range candidates {
		hash := utils.HashText(cand.Text)
		if _, dup := seen[hash]; dup {
			continue
		}

		key := normalizeKey(cand.Text)
		near := false
		for _, existing := range keys {
			if Ratio(key, existing) >= threshold {
				near = true
				break
			}
		}
		if near {
			continue
		}

		seen[hash] = struct{}{}
		keys = append(keys, key)
		kept = append(kept, cand)
	}
	return kept
}

// normalizeKey case-folds, collapses whitespace, and truncates the text used
// for near-duplicate comparison.
func normalizeKey(text string) string {
	key := strings.ToLower(utils.CollapseWhitespace(text))
	if len(key) > comparePrefixLen {
		key = key[:comparePrefixLen]
	}
	return key
}

// Ratio is a difflib-style similarity ratio: twice the total length of
// matching blocks over the combined length, in [0,1].
func Ratio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchLen(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchLen sums the lengths of matching blocks: the longest common
// substring, then recursively the pieces to its left and right.
func matchLen(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchLen(a[:ai], b[:bi])
	total += matchLen(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	// Single-row DP over byte positions.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}
