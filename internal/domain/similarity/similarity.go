// Package similarity scores free-text name resemblance for fuzzy
// transaction matching.
package similarity

import "strings"

// Ratio returns a similarity score in [0,1] between two strings,
// case-insensitive. It uses a longest-matching-blocks algorithm
// (Ratcliff/Obershelp) rather than edit distance, so substrings that
// appear in a different order still score reasonably.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToUpper(a))
	rb := []rune(strings.ToUpper(b))

	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	matched := matchingChars(ra, rb)
	return 2.0 * float64(matched) / float64(total)
}

// matchingChars counts characters covered by matching blocks: it finds
// the longest common substring, then recurses into the unmatched
// regions on either side of it.
func matchingChars(a, b []rune) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}

	matched := size
	matched += matchingChars(a[:ai], b[:bi])
	matched += matchingChars(a[ai+size:], b[bi+size:])
	return matched
}

// longestCommonBlock returns the start indices and length of the
// longest common substring of a and b.
func longestCommonBlock(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// lengths[j] is the length of the common suffix ending at a[i], b[j]
	// for the current row i.
	lengths := make([]int, len(b)+1)

	for i := 0; i < len(a); i++ {
		// Walk backwards so lengths[j] still holds the previous row.
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lengths[j+1] = lengths[j] + 1
				if lengths[j+1] > size {
					size = lengths[j+1]
					ai = i - size + 1
					bi = j - size + 1
				}
			} else {
				lengths[j+1] = 0
			}
		}
	}

	return ai, bi, size
}
