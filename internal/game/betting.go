package game

// Round tracks the open betting round on a single street.
type Round struct {
	BetToMatch    int64 // street total every active player must match
	LastRaiseSize int64 // size of the last full raise, floors the next one
	bigBlind      int64
	acted         map[int]bool // seats that have acted since the last full raise
	barred        map[int]bool // seats that may no longer raise this street
}

func newRound(bigBlind int64) *Round {
	r := &Round{bigBlind: bigBlind}
	r.reset()
	return r
}

// reset clears the round for a new street.
func (r *Round) reset() {
	r.BetToMatch = 0
	r.LastRaiseSize = r.bigBlind
	r.acted = make(map[int]bool)
	r.barred = make(map[int]bool)
}

// minIncrement is the smallest legal raise size.
func (r *Round) minIncrement() int64 {
	if r.LastRaiseSize > r.bigBlind {
		return r.LastRaiseSize
	}
	return r.bigBlind
}

// MinRaiseTo is the lowest street total a raise may target.
func (r *Round) MinRaiseTo() int64 { return r.BetToMatch + r.minIncrement() }

func (r *Round) markActed(seat int) { r.acted[seat] = true }

// reopen registers a full raise: everyone but the raiser must act again and
// regains the right to raise.
func (r *Round) reopen(raiser int) {
	r.acted = map[int]bool{raiser: true}
	r.barred = make(map[int]bool)
}

// shortRaise registers an all-in that trails the minimum raise size. Seats
// that already acted must still match the new total but may only call or
// fold.
func (r *Round) shortRaise(raiser int) {
	for seat := range r.acted {
		r.barred[seat] = true
	}
	r.acted[raiser] = true
}

func (r *Round) clone() *Round {
	c := *r
	c.acted = make(map[int]bool, len(r.acted))
	for seat, v := range r.acted {
		c.acted[seat] = v
	}
	c.barred = make(map[int]bool, len(r.barred))
	for seat, v := range r.barred {
		c.barred[seat] = v
	}
	return &c
}
