package room

import (
	"time"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/game"
	"github.com/cardroom/holdemd/internal/store"
)

// PlayerView is one seat as a requester is allowed to see it. Stack is the
// seat stack from the room, which mirrors the live stack on every committed
// operation.
type PlayerView struct {
	UserID    string   `json:"userId"`
	Nickname  string   `json:"nickname,omitempty"`
	Seat      int      `json:"seat"`
	Stack     int64    `json:"stack"`
	Status    string   `json:"status"`
	BetTotal  int64    `json:"betTotal"`
	Won       int64    `json:"wonAmount"`
	HoleCards []string `json:"holeCards,omitempty"`
	BestHand  string   `json:"bestHand,omitempty"`
}

// HandView is the projection of one hand for one requester. Room broadcasts
// use the view built for no requester, which hides every live hole card.
type HandView struct {
	HandID     string       `json:"handId"`
	RoomID     string       `json:"roomId"`
	Number     int64        `json:"handNumber"`
	State      string       `json:"state"`
	DealerSeat int          `json:"dealerSeat"`
	SmallBlind int64        `json:"smallBlind"`
	BigBlind   int64        `json:"bigBlind"`
	Community  []string     `json:"communityCards"`
	PotTotal   int64        `json:"potTotal"`
	CurrentID  string       `json:"currentPlayerId,omitempty"`
	Players    []PlayerView `json:"players"`
}

// ActionView is one row of a hand's log as clients see it.
type ActionView struct {
	Seq    int       `json:"sequenceNum"`
	UserID string    `json:"userId,omitempty"`
	Action string    `json:"action"`
	Amount int64     `json:"amount"`
	State  string    `json:"state"`
	At     time.Time `json:"at"`
}

// cardsVisible is the hole-card rule: a player always sees their own cards;
// everyone else sees them only once the hand reached showdown and only for
// players who did not fold. A fast-forward win never reveals, so the reveal
// marker is the evaluated best hand, which only a showdown assigns.
func cardsVisible(state, status, bestHand, userID, requesterID string) bool {
	if requesterID != "" && userID == requesterID {
		return true
	}
	if status == game.StatusFolded.String() || bestHand == "" {
		return false
	}
	return state == game.StateShowdown.String() || state == game.StateSettlement.String()
}

// liveHandView projects a live hand. seats supplies nicknames and the room
// seat stacks; entries for players no longer seated fall back to the live
// stack.
func liveHandView(h *game.Hand, seats []*store.SeatDetail, requesterID string) *HandView {
	byUser := make(map[string]*store.SeatDetail, len(seats))
	for _, s := range seats {
		byUser[s.UserID] = s
	}

	view := &HandView{
		HandID:     h.ID,
		RoomID:     h.RoomID,
		Number:     h.Number,
		State:      h.State.String(),
		DealerSeat: h.DealerSeat,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		Community:  card.Codes(h.Community),
		PotTotal:   h.PotTotal(),
	}
	if cp := h.CurrentPlayer(); cp != nil {
		view.CurrentID = cp.UserID
	}
	for _, p := range h.Players {
		pv := PlayerView{
			UserID:   p.UserID,
			Seat:     p.Seat,
			Stack:    p.Stack,
			Status:   p.Status.String(),
			BetTotal: p.BetTotal,
			Won:      p.Won,
			BestHand: p.BestHand,
		}
		if s, ok := byUser[p.UserID]; ok {
			pv.Nickname = s.Nickname
			pv.Stack = s.Stack
		}
		if cardsVisible(view.State, pv.Status, p.BestHand, p.UserID, requesterID) {
			pv.HoleCards = card.Codes(p.HoleCards)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// storedHandView projects a hand from its persisted rows, used once the live
// state has been retired. seats supplies current room stacks; players who
// have since left show a zero stack.
func storedHandView(h *store.Hand, players []*store.HandPlayerDetail, seats []*store.RoomPlayer, requesterID string) *HandView {
	stacks := make(map[string]int64, len(seats))
	for _, s := range seats {
		stacks[s.UserID] = s.Stack
	}

	view := &HandView{
		HandID:     h.ID,
		RoomID:     h.RoomID,
		Number:     h.Number,
		State:      h.State,
		DealerSeat: h.DealerSeat,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		Community:  splitCodes(h.Community),
		PotTotal:   h.PotTotal,
	}
	for _, p := range players {
		pv := PlayerView{
			UserID:   p.UserID,
			Nickname: p.Nickname,
			Seat:     p.Seat,
			Stack:    stacks[p.UserID],
			Status:   p.Status,
			BetTotal: p.BetTotal,
			Won:      p.Won,
			BestHand: p.BestHand,
		}
		if cardsVisible(h.State, p.Status, p.BestHand, p.UserID, requesterID) {
			pv.HoleCards = splitCodes(p.HoleCards)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

func actionView(a *store.HandAction) ActionView {
	v := ActionView{
		Seq:    a.Seq,
		Action: a.Type,
		Amount: a.Amount,
		State:  a.State,
		At:     a.CreatedAt,
	}
	if a.UserID.Valid {
		v.UserID = a.UserID.String
	}
	return v
}

// splitCodes turns a stored run of card codes back into a code list. A
// malformed value renders as no cards rather than failing the view.
func splitCodes(s string) []string {
	cards, err := card.ParseCards(s)
	if err != nil {
		return nil
	}
	return card.Codes(cards)
}
