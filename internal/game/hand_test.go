package game

import (
	"fmt"
	"testing"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/evaluator"
	"github.com/cardroom/holdemd/internal/randutil"
)

// newTestHand deals players into seats 0..n-1 at 10/20 blinds with a seeded
// deck.
func newTestHand(t *testing.T, dealer int, seed int64, stacks ...int64) *Hand {
	t.Helper()
	seats := make([]Seat, 0, len(stacks))
	for i, stack := range stacks {
		seats = append(seats, Seat{UserID: fmt.Sprintf("p%d", i), Seat: i, Stack: stack})
	}
	h, err := New(Config{
		ID:         "hand-1",
		RoomID:     "room-1",
		Number:     1,
		MaxSeats:   9,
		DealerSeat: dealer,
		SmallBlind: 10,
		BigBlind:   20,
		Seats:      seats,
		Deck:       card.NewDeck(randutil.New(seed)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func mustApply(t *testing.T, h *Hand, userID string, action ActionType, amount int64) {
	t.Helper()
	if err := h.Apply(userID, action, amount); err != nil {
		t.Fatalf("%s %s %d: %v", userID, action, amount, err)
	}
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %s", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("got %s (%v), want %s", got, err, code)
	}
}

// checkLog asserts the action log is dense from 1, that player decisions
// carry a user id and dealer entries do not.
func checkLog(t *testing.T, h *Hand) {
	t.Helper()
	for i, entry := range h.Log {
		if entry.Seq != i+1 {
			t.Errorf("log[%d].Seq = %d, want %d", i, entry.Seq, i+1)
		}
		dealer := entry.UserID == ""
		switch entry.Type {
		case ActionDealFlop, ActionDealTurn, ActionDealRiver, ActionShowdown, ActionSettle:
			if !dealer {
				t.Errorf("log[%d] %s carries user %s", i, entry.Type, entry.UserID)
			}
		default:
			if dealer {
				t.Errorf("log[%d] %s has no user", i, entry.Type)
			}
		}
	}
}

// checkSettled asserts terminal bookkeeping: chips conserved against the
// starting total, payouts equal the pot, and no dealt card repeats.
func checkSettled(t *testing.T, h *Hand, initialTotal int64) {
	t.Helper()
	if h.State != StateSettlement {
		t.Fatalf("state = %s, want SETTLEMENT", h.State)
	}
	if h.CurrentPlayer() != nil {
		t.Errorf("settled hand still has a current player")
	}

	var stacks, won int64
	for _, p := range h.Players {
		stacks += p.Stack
		won += p.Won
	}
	if stacks != initialTotal {
		t.Errorf("stacks total %d after settlement, want %d", stacks, initialTotal)
	}
	if won != h.PotTotal() {
		t.Errorf("won total %d, pot %d", won, h.PotTotal())
	}

	seen := make(map[card.Card]bool)
	for _, c := range h.Community {
		if seen[c] {
			t.Errorf("duplicate card %s", c)
		}
		seen[c] = true
	}
	for _, p := range h.Players {
		if len(p.HoleCards) != 2 {
			t.Errorf("%s holds %d cards, want 2", p.UserID, len(p.HoleCards))
		}
		for _, c := range p.HoleCards {
			if seen[c] {
				t.Errorf("duplicate card %s", c)
			}
			seen[c] = true
		}
	}
	checkLog(t, h)
}

func logTypes(h *Hand) []ActionType {
	types := make([]ActionType, len(h.Log))
	for i, entry := range h.Log {
		types[i] = entry.Type
	}
	return types
}

func wantLogTypes(t *testing.T, h *Hand, want ...ActionType) {
	t.Helper()
	got := logTypes(h)
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log[%d] = %s, want %s (full log %v)", i, got[i], want[i], got)
		}
	}
}

func TestHeadsUpWalkover(t *testing.T) {
	h := newTestHand(t, 0, 1, 1000, 1000)

	// Heads-up the button posts the small blind and acts first pre-flop.
	if h.CurrentSeat != 0 {
		t.Fatalf("first to act is seat %d, want 0", h.CurrentSeat)
	}
	mustApply(t, h, "p0", ActionFold, 0)

	checkSettled(t, h, 2000)
	wantLogTypes(t, h, ActionSmallBlind, ActionBigBlind, ActionFold, ActionSettle)
	if s := h.PlayerAt(0).Stack; s != 990 {
		t.Errorf("seat 0 stack = %d, want 990", s)
	}
	if s := h.PlayerAt(1).Stack; s != 1010 {
		t.Errorf("seat 1 stack = %d, want 1010", s)
	}
	// A walkover reveals nothing.
	for _, p := range h.Players {
		if p.BestHand != "" {
			t.Errorf("%s revealed %q on a walkover", p.UserID, p.BestHand)
		}
	}
}

func TestHeadsUpBigBlindOption(t *testing.T) {
	h := newTestHand(t, 0, 2, 1000, 1000)

	mustApply(t, h, "p0", ActionCall, 0)
	if h.State != StatePreFlop {
		t.Fatalf("state = %s after limp, want PRE_FLOP", h.State)
	}
	if h.CurrentSeat != 1 {
		t.Fatalf("current seat = %d, want the big blind's option", h.CurrentSeat)
	}

	mustApply(t, h, "p1", ActionCheck, 0)
	if h.State != StateFlop {
		t.Fatalf("state = %s after option check, want FLOP", h.State)
	}
	if len(h.Community) != 3 {
		t.Fatalf("community = %d cards, want 3", len(h.Community))
	}
	// Heads-up post-flop the big blind acts first.
	if h.CurrentSeat != 1 {
		t.Errorf("flop first to act = seat %d, want 1", h.CurrentSeat)
	}
}

func TestThreeWayTurnOrder(t *testing.T) {
	h := newTestHand(t, 0, 3, 1000, 1000, 1000)

	// Dealer 0: small blind 1, big blind 2, so the dealer opens pre-flop.
	if h.CurrentSeat != 0 {
		t.Fatalf("pre-flop first to act = seat %d, want 0", h.CurrentSeat)
	}
	mustApply(t, h, "p0", ActionCall, 0)
	if h.CurrentSeat != 1 {
		t.Fatalf("next = seat %d, want 1", h.CurrentSeat)
	}
	mustApply(t, h, "p1", ActionCall, 0)
	if h.CurrentSeat != 2 {
		t.Fatalf("next = seat %d, want 2", h.CurrentSeat)
	}
	mustApply(t, h, "p2", ActionCheck, 0)

	if h.State != StateFlop {
		t.Fatalf("state = %s, want FLOP", h.State)
	}
	// Post-flop action starts at the first seat after the button.
	if h.CurrentSeat != 1 {
		t.Errorf("flop first to act = seat %d, want 1", h.CurrentSeat)
	}
}

func TestRaiseResetsAction(t *testing.T) {
	h := newTestHand(t, 0, 4, 1000, 1000, 1000)

	mustApply(t, h, "p0", ActionCall, 0)
	mustApply(t, h, "p1", ActionCall, 0)
	mustApply(t, h, "p2", ActionRaise, 60)

	// Everyone before the raise owes a decision again.
	mustApply(t, h, "p0", ActionCall, 0)
	mustApply(t, h, "p1", ActionCall, 0)

	if h.State != StateFlop {
		t.Fatalf("state = %s, want FLOP", h.State)
	}
	for _, p := range h.Players {
		if p.BetTotal != 60 {
			t.Errorf("%s committed %d, want 60", p.UserID, p.BetTotal)
		}
	}
	wantLogTypes(t, h,
		ActionSmallBlind, ActionBigBlind,
		ActionCall, ActionCall, ActionRaise, ActionCall, ActionCall,
		ActionDealFlop)
}

func TestMinRaiseEnforcement(t *testing.T) {
	h := newTestHand(t, 0, 5, 1000, 1000)

	// Opening min-raise is to twice the big blind.
	wantCode(t, h.Apply("p0", ActionRaise, 39), CodeInvalidAmount)
	wantCode(t, h.Apply("p0", ActionRaise, 15), CodeInvalidAmount)
	mustApply(t, h, "p0", ActionRaise, 60)

	// Raise size was 40, so the next raise must reach 100.
	if got := h.Round.MinRaiseTo(); got != 100 {
		t.Fatalf("MinRaiseTo = %d, want 100", got)
	}
	wantCode(t, h.Apply("p1", ActionRaise, 99), CodeInvalidAmount)
	mustApply(t, h, "p1", ActionRaise, 100)
	if got := h.Round.MinRaiseTo(); got != 140 {
		t.Errorf("MinRaiseTo = %d, want 140", got)
	}
}

func TestValidationCodes(t *testing.T) {
	h := newTestHand(t, 0, 6, 1000, 1000)

	wantCode(t, h.Apply("p1", ActionCheck, 0), CodeNotYourTurn)
	wantCode(t, h.Apply("ghost", ActionFold, 0), CodeNotYourTurn)
	wantCode(t, h.Apply("p0", ActionCheck, 0), CodeIllegalAction)
	wantCode(t, h.Apply("p0", ActionRaise, -5), CodeInvalidAmount)
	wantCode(t, h.Apply("p0", ActionRaise, 2000), CodeInsufficientChips)

	mustApply(t, h, "p0", ActionCall, 0)
	wantCode(t, h.Apply("p1", ActionCall, 0), CodeIllegalAction)
	mustApply(t, h, "p1", ActionCheck, 0)

	// Deal entries are not player actions.
	wantCode(t, h.Apply("p1", ActionDealTurn, 0), CodeIllegalAction)

	mustApply(t, h, "p1", ActionCheck, 0)
	mustApply(t, h, "p0", ActionCheck, 0)
	mustApply(t, h, "p1", ActionCheck, 0)
	mustApply(t, h, "p0", ActionCheck, 0)
	mustApply(t, h, "p1", ActionCheck, 0)
	mustApply(t, h, "p0", ActionCheck, 0)

	if h.State != StateSettlement {
		t.Fatalf("state = %s after checking down, want SETTLEMENT", h.State)
	}
	wantCode(t, h.Apply("p0", ActionCheck, 0), CodeIllegalAction)
}

func TestAllInRunout(t *testing.T) {
	h := newTestHand(t, 0, 7, 1000, 1000)

	mustApply(t, h, "p0", ActionAllIn, 0)
	if h.State != StatePreFlop {
		t.Fatalf("state = %s, want PRE_FLOP while the call is pending", h.State)
	}
	mustApply(t, h, "p1", ActionAllIn, 0)

	checkSettled(t, h, 2000)
	if len(h.Community) != 5 {
		t.Fatalf("community = %d cards, want 5", len(h.Community))
	}
	wantLogTypes(t, h,
		ActionSmallBlind, ActionBigBlind, ActionAllIn, ActionAllIn,
		ActionDealFlop, ActionDealTurn, ActionDealRiver,
		ActionShowdown, ActionSettle)

	// Showdown reveals both hands and pays the better one.
	best := uint32(0)
	scores := make(map[int]uint32)
	for _, p := range h.Players {
		if p.BestHand == "" {
			t.Errorf("%s not revealed at showdown", p.UserID)
		}
		cards := append(append([]card.Card{}, p.HoleCards...), h.Community...)
		res, err := evaluator.Evaluate(cards)
		if err != nil {
			t.Fatalf("evaluate %s: %v", p.UserID, err)
		}
		scores[p.Seat] = res.Score
		if res.Score > best {
			best = res.Score
		}
	}
	for _, pay := range h.Payouts {
		if scores[pay.Seat] != best {
			t.Errorf("seat %d paid %d without the best score", pay.Seat, pay.Amount)
		}
	}
}

func TestSidePotsFromShortAllIn(t *testing.T) {
	h := newTestHand(t, 0, 8, 100, 500, 500)

	// Seat 0 opens all-in for its last 100, both blinds come along deeper.
	mustApply(t, h, "p0", ActionAllIn, 0)
	mustApply(t, h, "p1", ActionAllIn, 0)
	mustApply(t, h, "p2", ActionAllIn, 0)

	checkSettled(t, h, 1100)
	if len(h.Pots) != 2 {
		t.Fatalf("got %d pots, want 2", len(h.Pots))
	}
	if h.Pots[0].Amount != 300 || h.Pots[1].Amount != 800 {
		t.Errorf("pots = %d/%d, want 300/800", h.Pots[0].Amount, h.Pots[1].Amount)
	}
	if len(h.Pots[0].Eligible) != 3 || len(h.Pots[1].Eligible) != 2 {
		t.Errorf("eligibility = %v / %v, want 3 and 2 seats", h.Pots[0].Eligible, h.Pots[1].Eligible)
	}
}

func TestBlindAllInsSettleAtDeal(t *testing.T) {
	// Both blinds are short enough that the blinds themselves end the
	// betting: the hand runs out inside New.
	h := newTestHand(t, 0, 9, 8, 15)

	checkSettled(t, h, 23)
	wantLogTypes(t, h,
		ActionSmallBlind, ActionBigBlind,
		ActionDealFlop, ActionDealTurn, ActionDealRiver,
		ActionShowdown, ActionSettle)
	if h.Log[0].Amount != 8 || h.Log[1].Amount != 15 {
		t.Errorf("blinds posted %d/%d, want 8/15", h.Log[0].Amount, h.Log[1].Amount)
	}
}

func TestLoneActorFacingShortBlind(t *testing.T) {
	// Big blind is all-in under the nominal blind; the small blind still
	// owes a live decision.
	h := newTestHand(t, 0, 10, 1000, 15)

	if h.CurrentSeat != 0 {
		t.Fatalf("current seat = %d, want 0", h.CurrentSeat)
	}
	mustApply(t, h, "p0", ActionCall, 0)

	checkSettled(t, h, 1015)
	// Level 15 is shared, the uncalled 5 comes back to the caller alone.
	if len(h.Pots) != 2 {
		t.Fatalf("got %d pots, want 2", len(h.Pots))
	}
	if h.Pots[1].Amount != 5 || len(h.Pots[1].Eligible) != 1 || h.Pots[1].Eligible[0] != 0 {
		t.Errorf("overcall layer = %d %v, want 5 [0]", h.Pots[1].Amount, h.Pots[1].Eligible)
	}
}

func TestShortAllInDoesNotReopen(t *testing.T) {
	h := newTestHand(t, 0, 11, 1000, 1000, 150)

	mustApply(t, h, "p0", ActionRaise, 100)
	mustApply(t, h, "p1", ActionFold, 0)
	// Big blind's all-in to 150 trails the 80-chip raise size.
	mustApply(t, h, "p2", ActionAllIn, 0)

	if h.CurrentSeat != 0 {
		t.Fatalf("current seat = %d, want 0", h.CurrentSeat)
	}
	wantCode(t, h.Apply("p0", ActionRaise, 400), CodeIllegalAction)
	wantCode(t, h.Apply("p0", ActionAllIn, 0), CodeIllegalAction)

	for _, va := range h.ValidActions() {
		if va.Type == ActionRaise || va.Type == ActionAllIn {
			t.Errorf("%s offered against a short all-in", va.Type)
		}
	}

	mustApply(t, h, "p0", ActionCall, 0)
	checkSettled(t, h, 2150)
}

func TestQualifyingAllInReopens(t *testing.T) {
	h := newTestHand(t, 0, 12, 1000, 1000, 300)

	mustApply(t, h, "p0", ActionRaise, 100)
	mustApply(t, h, "p1", ActionFold, 0)
	// All-in to 300 is a full 200-chip raise: seat 0 may raise again.
	mustApply(t, h, "p2", ActionAllIn, 0)

	var raise *ValidAction
	for _, va := range h.ValidActions() {
		if va.Type == ActionRaise {
			v := va
			raise = &v
			break
		}
	}
	if raise == nil {
		t.Fatal("raise not offered after a full all-in raise")
	}
	if raise.Min != 500 {
		t.Errorf("min re-raise = %d, want 500", raise.Min)
	}

	mustApply(t, h, "p0", ActionCall, 0)
	checkSettled(t, h, 2300)
}

func TestFlopWalkoverKeepsCardsHidden(t *testing.T) {
	h := newTestHand(t, 0, 13, 1000, 1000, 1000)

	mustApply(t, h, "p0", ActionCall, 0)
	mustApply(t, h, "p1", ActionCall, 0)
	mustApply(t, h, "p2", ActionCheck, 0)

	mustApply(t, h, "p1", ActionRaise, 50)
	mustApply(t, h, "p2", ActionFold, 0)
	mustApply(t, h, "p0", ActionFold, 0)

	checkSettled(t, h, 3000)
	winner := h.PlayerAt(1)
	if winner.Stack != 1040 {
		t.Errorf("winner stack = %d, want 1040", winner.Stack)
	}
	if winner.BestHand != "" {
		t.Errorf("walkover revealed %q", winner.BestHand)
	}
	if got := h.PlayerAt(0).Stack; got != 980 {
		t.Errorf("seat 0 stack = %d, want 980", got)
	}
}

func TestCallForLessGoesAllIn(t *testing.T) {
	h := newTestHand(t, 0, 14, 1000, 50)

	mustApply(t, h, "p0", ActionRaise, 100)
	// Seat 1 calls with only 30 behind; the call is capped and flips the
	// status to all-in.
	mustApply(t, h, "p1", ActionCall, 0)

	checkSettled(t, h, 1050)
	p1 := h.PlayerAt(1)
	if p1.BetTotal != 50 {
		t.Errorf("capped call committed %d, want 50", p1.BetTotal)
	}
	if h.Pots[1].Amount != 50 || h.Pots[1].Eligible[0] != 0 {
		t.Errorf("uncalled layer = %d %v, want 50 [0]", h.Pots[1].Amount, h.Pots[1].Eligible)
	}
}

func TestNewValidation(t *testing.T) {
	base := Config{
		ID: "h", RoomID: "r", Number: 1, MaxSeats: 9, DealerSeat: 0,
		SmallBlind: 10, BigBlind: 20,
	}

	cfg := base
	cfg.Seats = []Seat{{UserID: "a", Seat: 0, Stack: 100}}
	_, err := New(cfg)
	wantCode(t, err, CodeInsufficientPlayers)

	cfg = base
	cfg.BigBlind = 25
	cfg.Seats = []Seat{{UserID: "a", Seat: 0, Stack: 100}, {UserID: "b", Seat: 1, Stack: 100}}
	_, err = New(cfg)
	wantCode(t, err, CodeInvalidBlindRatio)

	cfg = base
	cfg.Seats = []Seat{{UserID: "a", Seat: 0, Stack: 100}, {UserID: "b", Seat: 0, Stack: 100}}
	_, err = New(cfg)
	wantCode(t, err, CodeInternal)

	cfg = base
	cfg.DealerSeat = 5
	cfg.Seats = []Seat{{UserID: "a", Seat: 0, Stack: 100}, {UserID: "b", Seat: 1, Stack: 100}}
	_, err = New(cfg)
	wantCode(t, err, CodeInternal)
}

func TestEnumRoundTrips(t *testing.T) {
	for s := StateWaiting; s <= StateSettlement; s++ {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Errorf("ParseState(%s) = %v, %v", s, got, err)
		}
	}
	for a := ActionSmallBlind; a <= ActionSettle; a++ {
		got, err := ParseActionType(a.String())
		if err != nil || got != a {
			t.Errorf("ParseActionType(%s) = %v, %v", a, got, err)
		}
	}
	if ActionRaise.PlayerAction() != true || ActionDealFlop.PlayerAction() != false {
		t.Error("PlayerAction misclassifies")
	}
	if !StateFlop.Betting() || StateSettlement.Betting() {
		t.Error("Betting misclassifies")
	}
}
