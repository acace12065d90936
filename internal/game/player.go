package game

import (
	"fmt"

	"github.com/cardroom/holdemd/internal/card"
)

// PlayerStatus tracks a player's standing within a single hand.
type PlayerStatus int

const (
	StatusActive PlayerStatus = iota
	StatusFolded
	StatusAllIn
)

var statusNames = [...]string{"ACTIVE", "FOLDED", "ALL_IN"}

func (s PlayerStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("PlayerStatus(%d)", int(s))
	}
	return statusNames[s]
}

// ParsePlayerStatus maps a stored status name back to its PlayerStatus.
func ParsePlayerStatus(name string) (PlayerStatus, error) {
	for i, n := range statusNames {
		if n == name {
			return PlayerStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown player status %q", name)
}

// Player is one seat's live state within a hand.
type Player struct {
	UserID    string
	Seat      int
	Stack     int64
	HoleCards []card.Card
	Status    PlayerStatus
	StreetBet int64  // chips committed on the current street
	BetTotal  int64  // chips committed across the whole hand
	Won       int64  // chips awarded at settlement
	BestHand  string // revealed hand summary, set at showdown
}

// In reports whether the player still has a claim on the pot.
func (p *Player) In() bool { return p.Status != StatusFolded }

// CanAct reports whether the player can still make betting decisions.
func (p *Player) CanAct() bool { return p.Status == StatusActive }

// commit moves n chips from the stack into the street and hand totals,
// flipping the status to ALL_IN when the stack empties. Commits are capped
// at the stack.
func (p *Player) commit(n int64) {
	if n > p.Stack {
		n = p.Stack
	}
	p.Stack -= n
	p.StreetBet += n
	p.BetTotal += n
	if p.Stack == 0 {
		p.Status = StatusAllIn
	}
}
