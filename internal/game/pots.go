package game

import "sort"

// Pot is one layer of the pot with the seats eligible to win it.
type Pot struct {
	Amount   int64
	Eligible []int // seats, ascending
}

// BuildPots partitions total hand contributions into a main pot and side
// pots. Each distinct contribution level forms one layer funded by every
// player who reached it. Folded players' chips stay in the layers they
// funded but folded players are never eligible.
func BuildPots(players []*Player) []Pot {
	var levels []int64
	seen := make(map[int64]bool)
	for _, p := range players {
		if p.BetTotal > 0 && !seen[p.BetTotal] {
			seen[p.BetTotal] = true
			levels = append(levels, p.BetTotal)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]Pot, 0, len(levels))
	prev := int64(0)
	for _, level := range levels {
		var contributors int64
		var eligible []int
		for _, p := range players {
			if p.BetTotal < level {
				continue
			}
			contributors++
			if p.In() {
				eligible = append(eligible, p.Seat)
			}
		}
		sort.Ints(eligible)
		pots = append(pots, Pot{
			Amount:   (level - prev) * contributors,
			Eligible: eligible,
		})
		prev = level
	}
	return pots
}
