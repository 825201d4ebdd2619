package angryvirus

import "sort"

// Score totals a player's collected strains with run compression: each
// maximal run of consecutive values counts only its minimum, and every
// remaining token knocks a point off. Order of the input is irrelevant.
func Score(cards []int, tokens int) int {
	if len(cards) == 0 {
		return -tokens
	}
	sorted := append([]int(nil), cards...)
	sort.Ints(sorted)

	total := sorted[0]
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			total += sorted[i]
		}
	}
	return total - tokens
}
