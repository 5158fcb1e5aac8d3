package mapping

import (
	"math"
	"regexp"
	"strings"
)

// nonAlpha strips everything outside lowercase letters and whitespace.
var nonAlpha = regexp.MustCompile(`[^a-z\s]`)

// Normalize prepares text for fuzzy comparison: lowercase, remove
// digits and punctuation, collapse whitespace, trim. Both sides of a
// ratio computation must be normalized with this same function.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = nonAlpha.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Ratio returns a normalized indel similarity between a and b on the
// 0-100 integer scale: 100*(1 - distance/(len(a)+len(b))) rounded to
// the nearest integer, where distance counts insertions and deletions
// (substitution cost 2). Two empty strings are identical (100). The
// engine uses the 0-100 convention for both scores and thresholds.
func Ratio(a, b string) int {
	la, lb := len(a), len(b)
	if la+lb == 0 {
		return 100
	}
	dist := indelDistance(a, b)
	return int(math.Round(float64(la+lb-dist) / float64(la+lb) * 100))
}

// indelDistance computes the insert/delete edit distance via the LCS
// relation: dist = len(a) + len(b) - 2*lcs(a, b). Two rows of DP keep
// memory at O(min side).
func indelDistance(a, b string) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for j := 1; j <= len(b); j++ {
		for i := 1; i <= len(a); i++ {
			if a[i-1] == b[j-1] {
				curr[i] = prev[i-1] + 1
			} else if prev[i] >= curr[i-1] {
				curr[i] = prev[i]
			} else {
				curr[i] = curr[i-1]
			}
		}
		prev, curr = curr, prev
	}
	return len(a) + len(b) - 2*prev[len(a)]
}
