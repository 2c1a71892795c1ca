package normalize

// Trigrams returns the set of character 3-grams of s. Strings shorter than
// 3 runes yield the whole string as a single "gram" so short addresses
// still compare sensibly instead of producing an empty set.
func Trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	grams := make(map[string]struct{})
	if len(runes) < 3 {
		if len(runes) > 0 {
			grams[string(runes)] = struct{}{}
		}
		return grams
	}
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}

// TrigramSimilarity computes the Jaccard index over the character-trigram
// sets of a and b: |A∩B| / |A∪B|. Two empty inputs are dissimilar (0), not
// identical, since callers only invoke this once both sides are known
// non-empty.
func TrigramSimilarity(a, b string) float64 {
	setA := Trigrams(a)
	setB := Trigrams(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
