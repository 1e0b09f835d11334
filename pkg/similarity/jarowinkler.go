// Package similarity provides string similarity metrics used to compare
// normalized bug descriptions.
package similarity

const (
	// boostThreshold is the Jaro score above which the common-prefix boost applies.
	boostThreshold = 0.7
	prefixScale    = 0.1
	maxPrefix      = 4
)

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0,1].
// Identical strings (including two empty strings) score 1; an empty string
// against a non-empty one scores 0. Comparison is rune-wise and case-sensitive,
// so callers normalize first.
func JaroWinkler(a, b string) float64 {
	// Canonical argument order makes the score exactly symmetric.
	if a > b {
		a, b = b, a
	}
	s1, s2 := []rune(a), []rune(b)

	j := jaro(s1, s2)
	if j <= boostThreshold {
		return j
	}
	prefix := commonPrefix(s1, s2)
	return j + float64(prefix)*prefixScale*(1-j)
}

// Jaro returns the plain Jaro similarity of a and b in [0,1].
func Jaro(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	return jaro([]rune(a), []rune(b))
}

func jaro(s1, s2 []rune) float64 {
	if len(s1) == 0 && len(s2) == 0 {
		return 1
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}

	window := max(len(s1), len(s2))/2 - 1
	if window < 0 {
		window = 0
	}

	matched1 := make([]bool, len(s1))
	matched2 := make([]bool, len(s2))
	matches := 0

	for i := range s1 {
		lo := max(0, i-window)
		hi := min(len(s2), i+window+1)
		for k := lo; k < hi; k++ {
			if matched2[k] || s1[i] != s2[k] {
				continue
			}
			matched1[i] = true
			matched2[k] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	// Count matched characters that appear in a different order.
	outOfOrder := 0
	k := 0
	for i := range s1 {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if s1[i] != s2[k] {
			outOfOrder++
		}
		k++
	}

	m := float64(matches)
	transpositions := float64(outOfOrder) / 2
	return (m/float64(len(s1)) + m/float64(len(s2)) + (m-transpositions)/m) / 3
}

func commonPrefix(s1, s2 []rune) int {
	n := min(len(s1), len(s2), maxPrefix)
	for i := 0; i < n; i++ {
		if s1[i] != s2[i] {
			return i
		}
	}
	return n
}
