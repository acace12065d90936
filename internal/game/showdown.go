package game

import "sort"

// Payout records one pot award at settlement.
type Payout struct {
	PotIndex int
	Seat     int
	UserID   string
	Amount   int64
}

// ResolveShowdown splits each pot among the eligible seats holding the best
// score. Ties split evenly; odd chips go one at a time clockwise from the
// seat after the button. A layer whose eligible seats all folded falls to
// the first non-folded seat after the button.
func ResolveShowdown(players []*Player, pots []Pot, scores map[int]uint32, button, maxSeats int) []Payout {
	bySeat := make(map[int]*Player, len(players))
	for _, p := range players {
		bySeat[p.Seat] = p
	}

	var payouts []Payout
	for i, pot := range pots {
		var winners []int
		var best uint32
		for _, seat := range pot.Eligible {
			p := bySeat[seat]
			if p == nil || !p.In() {
				continue
			}
			s := scores[seat]
			switch {
			case len(winners) == 0 || s > best:
				winners = []int{seat}
				best = s
			case s == best:
				winners = append(winners, seat)
			}
		}
		if len(winners) == 0 {
			for off := 1; off <= maxSeats; off++ {
				if p := bySeat[(button+off)%maxSeats]; p != nil && p.In() {
					winners = []int{p.Seat}
					break
				}
			}
			if len(winners) == 0 {
				continue
			}
		}

		sort.Slice(winners, func(a, b int) bool {
			return clockDist(button, winners[a], maxSeats) < clockDist(button, winners[b], maxSeats)
		})
		share := pot.Amount / int64(len(winners))
		rem := pot.Amount % int64(len(winners))
		for _, seat := range winners {
			amount := share
			if rem > 0 {
				amount++
				rem--
			}
			if amount == 0 {
				continue
			}
			payouts = append(payouts, Payout{PotIndex: i, Seat: seat, UserID: bySeat[seat].UserID, Amount: amount})
		}
	}
	return payouts
}

// clockDist is the clockwise distance of seat from the seat after the button.
func clockDist(button, seat, maxSeats int) int {
	return ((seat-button-1)%maxSeats + maxSeats) % maxSeats
}
