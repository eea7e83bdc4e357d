package drugmatch

// DefaultThreshold is the similarity ratio at or above which two drug names
// are treated as the same product. Tuned for names that differ only in a
// dosage-form qualifier inside brackets.
const DefaultThreshold = 0.8

// Ratio returns a similarity score in [0,1] between two strings, computed
// rune-wise as 2*M/T where M is the total size of the longest matching
// blocks and T the combined length. Symmetric in block discovery order;
// Ratio(a,a) == 1.0. Two empty strings score 1.0, empty vs non-empty 0.0.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

// IsSimilarToAny reports whether name scores at or above threshold against
// any member of pool.
func IsSimilarToAny(name string, pool map[string]bool, threshold float64) bool {
	for candidate := range pool {
		if Ratio(name, candidate) >= threshold {
			return true
		}
	}
	return false
}

type matchSpan struct {
	alo, ahi, blo, bhi int
}

// matchingRunes sums the sizes of the longest matching blocks between a and
// b: find the longest common block, then recurse into the pieces to its left
// and right.
func matchingRunes(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	matched := 0
	stack := []matchSpan{{0, len(a), 0, len(b)}}
	for len(stack) > 0 {
		span := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, size := longestMatch(a, b2j, span)
		if size == 0 {
			continue
		}
		matched += size
		stack = append(stack,
			matchSpan{span.alo, i, span.blo, j},
			matchSpan{i + size, span.ahi, j + size, span.bhi},
		)
	}
	return matched
}

func longestMatch(a []rune, b2j map[rune][]int, span matchSpan) (besti, bestj, bestsize int) {
	besti, bestj = span.alo, span.blo
	j2len := make(map[int]int)
	for i := span.alo; i < span.ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < span.blo {
				continue
			}
			if j >= span.bhi {
				break
			}
			size := j2len[j-1] + 1
			newj2len[j] = size
			if size > bestsize {
				besti, bestj, bestsize = i-size+1, j-size+1, size
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
