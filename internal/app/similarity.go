package app

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// textSimilarity returns a normalized edit-distance similarity in [0,1]:
// 1 for identical texts, 0 for completely different ones. Texts are
// lowercased and whitespace-collapsed first so two engines reading the same
// page are not penalized for layout differences.
func textSimilarity(a, b string) float64 {
	na, nb := normalizeForComparison(a), normalizeForComparison(b)
	if na == "" && nb == "" {
		return 1
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longest)
}

func normalizeForComparison(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
