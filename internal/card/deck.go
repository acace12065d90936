package card

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/cardroom/holdemd/internal/randutil"
)

// Deck is the 52-card multiset with a deal pointer. Dealt cards stay in the
// backing slice; the pointer separates dealt from remaining so the full
// permutation stays inspectable for audits.
type Deck struct {
	cards []Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates an unshuffled 52-card deck. A nil rng gets a
// crypto-seeded source, which is what live play must use.
func NewDeck(rng *rand.Rand) *Deck {
	if rng == nil {
		rng = randutil.NewCrypto()
	}
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, New(rank, suit))
		}
	}
	return d
}

// NewStacked builds a deck that deals the given cards first, with the rest
// of the 52 following in canonical order. Hands dealt from it are fully
// predetermined, which replays and tests rely on.
func NewStacked(first ...Card) *Deck {
	d := NewDeck(nil)
	head := make(map[Card]bool, len(first))
	for _, c := range first {
		head[c] = true
	}
	cards := make([]Card, 0, len(d.cards))
	cards = append(cards, first...)
	for _, c := range d.cards {
		if !head[c] {
			cards = append(cards, c)
		}
	}
	d.cards = cards
	return d
}

// Shuffle uniformly permutes every card, dealt or not, and resets the deal
// pointer.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
	d.next = 0
}

// Deal returns the next n cards and advances the pointer. It fails without
// advancing when fewer than n cards remain.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 {
		return nil, fmt.Errorf("deck: cannot deal %d cards", n)
	}
	if remaining := d.Remaining(); remaining < n {
		return nil, fmt.Errorf("deck: %d cards requested, %d remain", n, remaining)
	}
	out := make([]Card, n)
	copy(out, d.cards[d.next:d.next+n])
	d.next += n
	return out, nil
}

// DealOne deals a single card.
func (d *Deck) DealOne() (Card, error) {
	cards, err := d.Deal(1)
	if err != nil {
		return Card{}, err
	}
	return cards[0], nil
}

// RemoveAll removes the given cards from the deck entirely and resets the
// deal pointer. Known-card simulations use this to deal from a depleted
// deck. Cards not present are ignored.
func (d *Deck) RemoveAll(cards ...Card) {
	if len(cards) == 0 {
		d.next = 0
		return
	}
	drop := make(map[Card]bool, len(cards))
	for _, c := range cards {
		drop[c] = true
	}
	kept := d.cards[:0]
	for _, c := range d.cards {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	d.cards = kept
	d.next = 0
}

// Clone copies the card order and deal pointer. The clone shares the
// shuffle source, so clones are for replaying deals, not for reshuffling.
func (d *Deck) Clone() *Deck {
	cards := make([]Card, len(d.cards))
	copy(cards, d.cards)
	return &Deck{cards: cards, next: d.next, rng: d.rng}
}

// Remaining returns how many cards are left to deal.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}

// Size returns the total number of cards in the deck, dealt or not.
func (d *Deck) Size() int {
	return len(d.cards)
}
