package neondraft

// RoundScore totals one tableau for a single round: chrome at face
// value, pulse in completed sets (triples first, then pairs). Grid
// majority and static penalties are relative to other players and are
// applied by the round scorer, not here.
func RoundScore(tableau []Card) int {
	total := 0
	pulse := 0
	for _, c := range tableau {
		switch c.Category {
		case CatChrome:
			total += c.Value
		case CatPulse:
			pulse++
		}
	}
	total += (pulse / 3) * tripleBonus
	total += (pulse % 3 / 2) * pairBonus
	return total
}
