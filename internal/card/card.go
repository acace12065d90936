package card

import (
	"fmt"
	"strings"
)

// Suit represents a card suit.
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// String returns the one-letter suit code used in card codes.
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "h"
	case Diamonds:
		return "d"
	case Clubs:
		return "c"
	case Spades:
		return "s"
	default:
		return "?"
	}
}

// Symbol returns the unicode glyph for the suit, used by terminal clients.
func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// IsRed returns true for hearts and diamonds.
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank. Numeric values follow card strength with
// ace high (14); the wheel straight is the evaluator's concern, not the
// rank's.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the one-letter rank code used in card codes.
func (r Rank) String() string {
	switch r {
	case Two:
		return "2"
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return "?"
	}
}

// Card is a playing card. The zero value is not a valid card; build cards
// with New or Parse.
type Card struct {
	Rank Rank
	Suit Suit
}

// New creates a card from a rank and suit.
func New(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Code returns the canonical two-character encoding, rank then suit,
// e.g. "Ah" or "Td".
func (c Card) Code() string {
	return c.Rank.String() + c.Suit.String()
}

// String returns the same form as Code.
func (c Card) String() string {
	return c.Code()
}

// IsRed returns true if the card's suit is red.
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// Valid reports whether the card is one of the 52 in the domain.
func (c Card) Valid() bool {
	return c.Rank >= Two && c.Rank <= Ace && c.Suit >= Hearts && c.Suit <= Spades
}

// MarshalJSON encodes the card as its two-character code.
func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("card: cannot marshal invalid card %+v", c)
	}
	return []byte(`"` + c.Code() + `"`), nil
}

// UnmarshalJSON decodes a card from its two-character code.
func (c *Card) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse converts a two-character code into a Card. Rank letters are
// case-insensitive; suits accept either case.
func Parse(code string) (Card, error) {
	if len(code) != 2 {
		return Card{}, fmt.Errorf("card: code %q must be two characters", code)
	}

	var rank Rank
	switch strings.ToUpper(code[:1]) {
	case "2":
		rank = Two
	case "3":
		rank = Three
	case "4":
		rank = Four
	case "5":
		rank = Five
	case "6":
		rank = Six
	case "7":
		rank = Seven
	case "8":
		rank = Eight
	case "9":
		rank = Nine
	case "T":
		rank = Ten
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	default:
		return Card{}, fmt.Errorf("card: unknown rank %q in %q", code[:1], code)
	}

	var suit Suit
	switch strings.ToLower(code[1:]) {
	case "h":
		suit = Hearts
	case "d":
		suit = Diamonds
	case "c":
		suit = Clubs
	case "s":
		suit = Spades
	default:
		return Card{}, fmt.Errorf("card: unknown suit %q in %q", code[1:], code)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// MustParse is Parse that panics on malformed codes. For tests and constants.
func MustParse(code string) Card {
	c, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCards parses a run of codes, either concatenated ("AhKd") or
// whitespace-separated ("Ah Kd").
func ParseCards(s string) ([]Card, error) {
	compact := strings.Join(strings.Fields(s), "")
	if len(compact)%2 != 0 {
		return nil, fmt.Errorf("card: odd-length card string %q", s)
	}
	cards := make([]Card, 0, len(compact)/2)
	for i := 0; i < len(compact); i += 2 {
		c, err := Parse(compact[i : i+2])
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseCards is ParseCards that panics on malformed input.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

// Codes renders a card slice as its codes, in order.
func Codes(cards []Card) []string {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code()
	}
	return codes
}
