// Package evaluator scores poker hands of five to seven cards.
//
// Scores are a total order packed into a uint32: the category occupies the
// high bits and five 4-bit kicker slots follow in significance order. Two
// hands carry the same score exactly when they tie at showdown, so callers
// compare scores directly and never re-derive tiebreaks.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cardroom/holdemd/internal/card"
)

// Category is the poker hand class. Order follows hand strength.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the stable wire name of the category.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "HIGH_CARD"
	case OnePair:
		return "ONE_PAIR"
	case TwoPair:
		return "TWO_PAIR"
	case ThreeOfAKind:
		return "THREE_OF_A_KIND"
	case Straight:
		return "STRAIGHT"
	case Flush:
		return "FLUSH"
	case FullHouse:
		return "FULL_HOUSE"
	case FourOfAKind:
		return "FOUR_OF_A_KIND"
	case StraightFlush:
		return "STRAIGHT_FLUSH"
	case RoyalFlush:
		return "ROYAL_FLUSH"
	default:
		return "UNKNOWN"
	}
}

// Result is the evaluation of one input. Best holds the winning five cards
// ordered by significance (pairs and sets first, kickers after).
type Result struct {
	Category Category
	Score    uint32
	Best     []card.Card
}

// Summary renders the result for persistence, e.g. "FULL_HOUSE Ah Ad Ac Kh Kd".
func (r Result) Summary() string {
	return r.Category.String() + " " + strings.Join(card.Codes(r.Best), " ")
}

// Evaluate scores five to seven cards. With more than five cards every
// five-card subset is scored and the maximum wins.
func Evaluate(cards []card.Card) (Result, error) {
	n := len(cards)
	if n < 5 || n > 7 {
		return Result{}, fmt.Errorf("evaluator: need 5-7 cards, got %d", n)
	}
	seen := make(map[card.Card]bool, n)
	for _, c := range cards {
		if !c.Valid() {
			return Result{}, fmt.Errorf("evaluator: invalid card %+v", c)
		}
		if seen[c] {
			return Result{}, fmt.Errorf("evaluator: duplicate card %s", c)
		}
		seen[c] = true
	}

	var five [5]card.Card
	if n == 5 {
		copy(five[:], cards)
		return eval5(five), nil
	}

	var best Result
	for i := 0; i < n-4; i++ {
		for j := i + 1; j < n-3; j++ {
			for k := j + 1; k < n-2; k++ {
				for l := k + 1; l < n-1; l++ {
					for m := l + 1; m < n; m++ {
						five[0], five[1], five[2], five[3], five[4] =
							cards[i], cards[j], cards[k], cards[l], cards[m]
						if r := eval5(five); r.Score > best.Score {
							best = r
						}
					}
				}
			}
		}
	}
	return best, nil
}

// rankGroup is a run of equal-ranked cards within one five-card hand.
type rankGroup struct {
	rank card.Rank
	n    int
}

func eval5(five [5]card.Card) Result {
	var count [15]int
	for _, c := range five {
		count[c.Rank]++
	}

	flush := five[0].Suit == five[1].Suit &&
		five[0].Suit == five[2].Suit &&
		five[0].Suit == five[3].Suit &&
		five[0].Suit == five[4].Suit

	// Groups ordered by count then rank, both descending. The stable sort
	// keeps the rank-descending order of equal-sized groups.
	groups := make([]rankGroup, 0, 5)
	for r := card.Ace; r >= card.Two; r-- {
		if count[r] > 0 {
			groups = append(groups, rankGroup{rank: r, n: count[r]})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].n > groups[j].n })

	var straightHigh card.Rank
	if len(groups) == 5 {
		switch {
		case groups[0].rank-groups[4].rank == 4:
			straightHigh = groups[0].rank
		case groups[0].rank == card.Ace && groups[1].rank == card.Five && groups[4].rank == card.Two:
			// The wheel: the ace plays low and the straight is five-high.
			straightHigh = card.Five
		}
	}

	switch {
	case flush && straightHigh == card.Ace:
		return Result{
			Category: RoyalFlush,
			Score:    pack(RoyalFlush, card.Ace),
			Best:     straightOrder(five, straightHigh),
		}
	case flush && straightHigh > 0:
		return Result{
			Category: StraightFlush,
			Score:    pack(StraightFlush, straightHigh),
			Best:     straightOrder(five, straightHigh),
		}
	case groups[0].n == 4:
		return Result{
			Category: FourOfAKind,
			Score:    pack(FourOfAKind, groups[0].rank, groups[1].rank),
			Best:     groupOrder(five, groups),
		}
	case groups[0].n == 3 && groups[1].n == 2:
		return Result{
			Category: FullHouse,
			Score:    pack(FullHouse, groups[0].rank, groups[1].rank),
			Best:     groupOrder(five, groups),
		}
	case flush:
		return Result{
			Category: Flush,
			Score:    pack(Flush, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank, groups[4].rank),
			Best:     groupOrder(five, groups),
		}
	case straightHigh > 0:
		return Result{
			Category: Straight,
			Score:    pack(Straight, straightHigh),
			Best:     straightOrder(five, straightHigh),
		}
	case groups[0].n == 3:
		return Result{
			Category: ThreeOfAKind,
			Score:    pack(ThreeOfAKind, groups[0].rank, groups[1].rank, groups[2].rank),
			Best:     groupOrder(five, groups),
		}
	case groups[0].n == 2 && groups[1].n == 2:
		return Result{
			Category: TwoPair,
			Score:    pack(TwoPair, groups[0].rank, groups[1].rank, groups[2].rank),
			Best:     groupOrder(five, groups),
		}
	case groups[0].n == 2:
		return Result{
			Category: OnePair,
			Score:    pack(OnePair, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank),
			Best:     groupOrder(five, groups),
		}
	default:
		return Result{
			Category: HighCard,
			Score:    pack(HighCard, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank, groups[4].rank),
			Best:     groupOrder(five, groups),
		}
	}
}

// pack builds the total-order score: 4 bits of category, then up to five
// 4-bit kicker slots in significance order. Ranks 2-14 fit a slot exactly.
func pack(cat Category, kickers ...card.Rank) uint32 {
	s := uint32(cat) << 20
	shift := 16
	for _, k := range kickers {
		s |= uint32(k) << shift
		shift -= 4
	}
	return s
}

// groupOrder lays the five cards out by group significance.
func groupOrder(five [5]card.Card, groups []rankGroup) []card.Card {
	out := make([]card.Card, 0, 5)
	for _, g := range groups {
		for _, c := range five {
			if c.Rank == g.rank {
				out = append(out, c)
			}
		}
	}
	return out
}

// straightOrder lays a straight out from its high card down, with the wheel
// rendered 5-4-3-2-A.
func straightOrder(five [5]card.Card, high card.Rank) []card.Card {
	out := make([]card.Card, 0, 5)
	for r := high; r > high-5 && r >= card.Two; r-- {
		for _, c := range five {
			if c.Rank == r {
				out = append(out, c)
			}
		}
	}
	if high == card.Five {
		for _, c := range five {
			if c.Rank == card.Ace {
				out = append(out, c)
			}
		}
	}
	return out
}
