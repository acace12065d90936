package game

import (
	"sort"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/evaluator"
)

// Seat is a room player being dealt into a new hand.
type Seat struct {
	UserID string
	Seat   int
	Stack  int64
}

// Config seeds a new hand.
type Config struct {
	ID         string
	RoomID     string
	Number     int64
	MaxSeats   int
	DealerSeat int
	SmallBlind int64
	BigBlind   int64
	Seats      []Seat
	Deck       *card.Deck // nil draws a crypto-seeded deck
}

// LogEntry is one row of a hand's ordered action log. Seq starts at 1 and
// has no gaps. UserID is empty for dealer entries.
type LogEntry struct {
	Seq    int
	UserID string
	Type   ActionType
	Amount int64
	State  State
}

// Hand is the full live state of one hand of hold'em. It is not safe for
// concurrent use; the manager serializes access per room.
type Hand struct {
	ID         string
	RoomID     string
	Number     int64
	MaxSeats   int
	DealerSeat int
	SmallBlind int64
	BigBlind   int64

	State     State
	Community []card.Card
	Players   []*Player // seat order
	Log       []LogEntry

	CurrentSeat int // -1 once no decision is pending
	Round       *Round
	Pots        []Pot    // built at showdown or walkover
	Payouts     []Payout // filled at settlement

	deck *card.Deck
}

// New deals a fresh hand: hole cards go out clockwise from the seat after
// the button, blinds are posted and the hand advances to the first pending
// decision. A nil deck gets a fresh crypto-shuffled one; a provided deck is
// dealt as-is, which is how callers fix a runout. When the blinds already
// end the betting (all players all-in) the returned hand is fully settled.
func New(cfg Config) (*Hand, error) {
	if len(cfg.Seats) < 2 {
		return nil, E(CodeInsufficientPlayers, "a hand needs at least two players")
	}
	if cfg.MaxSeats < len(cfg.Seats) {
		return nil, Errf(CodeInternal, "%d players cannot fit %d seats", len(cfg.Seats), cfg.MaxSeats)
	}
	if cfg.SmallBlind <= 0 || cfg.BigBlind != cfg.SmallBlind*2 {
		return nil, Errf(CodeInvalidBlindRatio, "big blind must be twice the small blind, got %d/%d", cfg.SmallBlind, cfg.BigBlind)
	}

	h := &Hand{
		ID:          cfg.ID,
		RoomID:      cfg.RoomID,
		Number:      cfg.Number,
		MaxSeats:    cfg.MaxSeats,
		DealerSeat:  cfg.DealerSeat,
		SmallBlind:  cfg.SmallBlind,
		BigBlind:    cfg.BigBlind,
		State:       StatePreFlop,
		CurrentSeat: -1,
		Round:       newRound(cfg.BigBlind),
		deck:        cfg.Deck,
	}
	if h.deck == nil {
		h.deck = card.NewDeck(nil)
		h.deck.Shuffle()
	}

	for _, s := range cfg.Seats {
		if s.Seat < 0 || s.Seat >= cfg.MaxSeats {
			return nil, Errf(CodeInternal, "seat %d out of range 0..%d", s.Seat, cfg.MaxSeats-1)
		}
		if s.Stack <= 0 {
			return nil, Errf(CodeInternal, "player %s dealt in with no chips", s.UserID)
		}
		h.Players = append(h.Players, &Player{UserID: s.UserID, Seat: s.Seat, Stack: s.Stack})
	}
	sort.Slice(h.Players, func(i, j int) bool { return h.Players[i].Seat < h.Players[j].Seat })
	for i := 1; i < len(h.Players); i++ {
		if h.Players[i].Seat == h.Players[i-1].Seat {
			return nil, Errf(CodeInternal, "seat %d dealt in twice", h.Players[i].Seat)
		}
	}
	if h.PlayerAt(h.DealerSeat) == nil {
		return nil, Errf(CodeInternal, "dealer seat %d is empty", h.DealerSeat)
	}

	if err := h.dealHoleCards(); err != nil {
		return nil, err
	}
	h.postBlinds()
	if err := h.advance(h.bigBlindSeat()); err != nil {
		return nil, err
	}
	return h, nil
}

// Apply validates and plays one action for userID, then advances the hand as
// far as it can go without further input.
func (h *Hand) Apply(userID string, action ActionType, amount int64) error {
	if !h.State.Betting() {
		return Errf(CodeIllegalAction, "hand is in %s", h.State)
	}
	p := h.Player(userID)
	if p == nil || p.Seat != h.CurrentSeat {
		return E(CodeNotYourTurn, "it is not your turn")
	}
	if err := h.validate(p, action, amount); err != nil {
		return err
	}

	switch action {
	case ActionFold:
		p.Status = StatusFolded
		h.Round.markActed(p.Seat)
		h.log(userID, ActionFold, 0)

	case ActionCheck:
		h.Round.markActed(p.Seat)
		h.log(userID, ActionCheck, 0)

	case ActionCall:
		p.commit(h.Round.BetToMatch - p.StreetBet)
		h.Round.markActed(p.Seat)
		h.log(userID, ActionCall, p.StreetBet)

	case ActionRaise:
		p.commit(amount - p.StreetBet)
		h.Round.LastRaiseSize = amount - h.Round.BetToMatch
		h.Round.BetToMatch = amount
		h.Round.reopen(p.Seat)
		h.log(userID, ActionRaise, p.StreetBet)

	case ActionAllIn:
		target := p.StreetBet + p.Stack
		p.commit(p.Stack)
		switch {
		case target > h.Round.BetToMatch && target-h.Round.BetToMatch >= h.Round.minIncrement():
			h.Round.LastRaiseSize = target - h.Round.BetToMatch
			h.Round.BetToMatch = target
			h.Round.reopen(p.Seat)
		case target > h.Round.BetToMatch:
			h.Round.BetToMatch = target
			h.Round.shortRaise(p.Seat)
		default:
			h.Round.markActed(p.Seat)
		}
		h.log(userID, ActionAllIn, p.StreetBet)
	}

	return h.advance(p.Seat)
}

// advance pushes the hand forward after an action: hands the turn to the
// next actor, moves streets once betting closes, and runs the board out when
// no further betting is possible.
func (h *Hand) advance(from int) error {
	for {
		if h.inCount() == 1 {
			h.settleWalkover()
			return nil
		}
		if !h.roundComplete() {
			next := h.nextActor(from)
			if next == nil {
				return E(CodeInternal, "open betting round with nobody to act")
			}
			h.CurrentSeat = next.Seat
			return nil
		}

		h.CurrentSeat = -1
		for _, p := range h.Players {
			p.StreetBet = 0
		}
		h.Round.reset()

		switch h.State {
		case StatePreFlop:
			if err := h.dealCommunity(StateFlop, ActionDealFlop, 3); err != nil {
				return err
			}
		case StateFlop:
			if err := h.dealCommunity(StateTurn, ActionDealTurn, 1); err != nil {
				return err
			}
		case StateTurn:
			if err := h.dealCommunity(StateRiver, ActionDealRiver, 1); err != nil {
				return err
			}
		case StateRiver:
			return h.showdown()
		}
		from = h.DealerSeat
	}
}

// roundComplete reports whether the current street's betting is closed:
// nobody owes chips, and either at most one player can still act or every
// one of them has acted since the last full raise.
func (h *Hand) roundComplete() bool {
	var actors []*Player
	for _, p := range h.Players {
		if p.CanAct() {
			actors = append(actors, p)
		}
	}
	for _, p := range actors {
		if p.StreetBet < h.Round.BetToMatch {
			return false
		}
	}
	if len(actors) <= 1 {
		return true
	}
	for _, p := range actors {
		if !h.Round.acted[p.Seat] {
			return false
		}
	}
	return true
}

// showdown reveals the contenders, builds the pots and splits each among its
// best hands, then settles.
func (h *Hand) showdown() error {
	h.State = StateShowdown
	h.Pots = BuildPots(h.Players)
	h.log("", ActionShowdown, 0)

	scores := make(map[int]uint32)
	for _, p := range h.Players {
		if !p.In() {
			continue
		}
		cards := make([]card.Card, 0, len(p.HoleCards)+len(h.Community))
		cards = append(cards, p.HoleCards...)
		cards = append(cards, h.Community...)
		res, err := evaluator.Evaluate(cards)
		if err != nil {
			return Wrap(CodeInternal, "evaluating showdown hand", err)
		}
		scores[p.Seat] = res.Score
		p.BestHand = res.Summary()
	}

	h.Payouts = ResolveShowdown(h.Players, h.Pots, scores, h.DealerSeat, h.MaxSeats)
	h.finishSettlement()
	return nil
}

// settleWalkover ends the hand when a single non-folded player remains: the
// whole pot, folded chips included, goes to them with no showdown and no
// reveal.
func (h *Hand) settleWalkover() {
	var winner *Player
	for _, p := range h.Players {
		if p.In() {
			winner = p
			break
		}
	}
	for _, p := range h.Players {
		p.StreetBet = 0
	}
	h.Pots = BuildPots(h.Players)
	for i, pot := range h.Pots {
		h.Payouts = append(h.Payouts, Payout{PotIndex: i, Seat: winner.Seat, UserID: winner.UserID, Amount: pot.Amount})
	}
	h.finishSettlement()
}

// finishSettlement credits payouts to stacks and closes the hand.
func (h *Hand) finishSettlement() {
	h.CurrentSeat = -1
	for _, pay := range h.Payouts {
		if p := h.PlayerAt(pay.Seat); p != nil {
			p.Won += pay.Amount
		}
	}
	for _, p := range h.Players {
		p.Stack += p.Won
	}
	h.State = StateSettlement
	h.log("", ActionSettle, h.PotTotal())
}

func (h *Hand) dealHoleCards() error {
	for off := 1; off <= h.MaxSeats; off++ {
		p := h.PlayerAt((h.DealerSeat + off) % h.MaxSeats)
		if p == nil {
			continue
		}
		cards, err := h.deck.Deal(2)
		if err != nil {
			return Wrap(CodeInternal, "dealing hole cards", err)
		}
		p.HoleCards = cards
	}
	return nil
}

func (h *Hand) dealCommunity(to State, typ ActionType, n int) error {
	cards, err := h.deck.Deal(n)
	if err != nil {
		return Wrap(CodeInternal, "dealing community cards", err)
	}
	h.Community = append(h.Community, cards...)
	h.State = to
	h.log("", typ, 0)
	return nil
}

func (h *Hand) postBlinds() {
	post := func(seat int, amount int64, typ ActionType) {
		p := h.PlayerAt(seat)
		p.commit(amount)
		h.log(p.UserID, typ, p.StreetBet)
	}
	post(h.smallBlindSeat(), h.SmallBlind, ActionSmallBlind)
	post(h.bigBlindSeat(), h.BigBlind, ActionBigBlind)
	h.Round.BetToMatch = h.BigBlind
}

// smallBlindSeat is the seat after the button, or the button itself when
// only two players are dealt in.
func (h *Hand) smallBlindSeat() int {
	if len(h.Players) == 2 {
		return h.DealerSeat
	}
	return h.nextOccupied(h.DealerSeat).Seat
}

func (h *Hand) bigBlindSeat() int {
	return h.nextOccupied(h.smallBlindSeat()).Seat
}

func (h *Hand) log(userID string, typ ActionType, amount int64) {
	h.Log = append(h.Log, LogEntry{
		Seq:    len(h.Log) + 1,
		UserID: userID,
		Type:   typ,
		Amount: amount,
		State:  h.State,
	})
}

// Clone deep-copies the hand. Callers apply actions to the clone and keep
// the original when persistence fails, so an installed hand is never mutated
// in place.
func (h *Hand) Clone() *Hand {
	c := *h
	c.Community = append([]card.Card(nil), h.Community...)
	c.Log = append([]LogEntry(nil), h.Log...)
	c.Players = make([]*Player, len(h.Players))
	for i, p := range h.Players {
		cp := *p
		cp.HoleCards = append([]card.Card(nil), p.HoleCards...)
		c.Players[i] = &cp
	}
	c.Pots = make([]Pot, len(h.Pots))
	for i, pot := range h.Pots {
		pot.Eligible = append([]int(nil), pot.Eligible...)
		c.Pots[i] = pot
	}
	c.Payouts = append([]Payout(nil), h.Payouts...)
	c.Round = h.Round.clone()
	c.deck = h.deck.Clone()
	return &c
}

// Player returns the player with the given user id, or nil.
func (h *Hand) Player(userID string) *Player {
	for _, p := range h.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// PlayerAt returns the player in the given seat, or nil.
func (h *Hand) PlayerAt(seat int) *Player {
	for _, p := range h.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// CurrentPlayer returns the player due to act, or nil when none is.
func (h *Hand) CurrentPlayer() *Player {
	if h.CurrentSeat < 0 || !h.State.Betting() {
		return nil
	}
	return h.PlayerAt(h.CurrentSeat)
}

// PotTotal is the cumulative number of chips committed to the hand.
func (h *Hand) PotTotal() int64 {
	var total int64
	for _, p := range h.Players {
		total += p.BetTotal
	}
	return total
}

func (h *Hand) inCount() int {
	n := 0
	for _, p := range h.Players {
		if p.In() {
			n++
		}
	}
	return n
}

// nextOccupied returns the first occupied seat clockwise after from.
func (h *Hand) nextOccupied(from int) *Player {
	for off := 1; off <= h.MaxSeats; off++ {
		if p := h.PlayerAt((from + off) % h.MaxSeats); p != nil {
			return p
		}
	}
	return nil
}

// nextActor returns the first seat clockwise after from that can still act.
func (h *Hand) nextActor(from int) *Player {
	for off := 1; off <= h.MaxSeats; off++ {
		if p := h.PlayerAt((from + off) % h.MaxSeats); p != nil && p.CanAct() {
			return p
		}
	}
	return nil
}
