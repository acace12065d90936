package evaluator

import (
	"math"
	"testing"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/randutil"
)

func inDelta(t *testing.T, want, got, delta float64) {
	t.Helper()
	if math.Abs(want-got) > delta {
		t.Fatalf("got %.4f, want %.4f within %.4f", got, want, delta)
	}
}

func fullDeck(t *testing.T) []card.Card {
	t.Helper()
	all, err := card.NewDeck(randutil.New(1)).Deal(52)
	if err != nil {
		t.Fatalf("deal full deck: %v", err)
	}
	return all
}

func TestCardSet(t *testing.T) {
	cards := card.MustParseCards("Ah 2h As Kd")
	s := NewCardSet(cards...)
	if got := s.Count(); got != 4 {
		t.Fatalf("Count() = %d, want 4", got)
	}
	for _, c := range cards {
		if !s.Contains(c) {
			t.Fatalf("set should contain %s", c)
		}
	}
	if s.Contains(card.MustParse("2s")) {
		t.Fatal("set should not contain 2s")
	}
	s.Add(card.MustParse("Ah"))
	if got := s.Count(); got != 4 {
		t.Fatalf("re-adding a card changed Count() to %d", got)
	}
}

func TestRandomRangeDrawsDistinctCards(t *testing.T) {
	rng := randutil.New(3)
	available := card.MustParseCards("Ah Kd 9c 5s 2h 7d")
	pool := NewCardSet(available...)
	for i := 0; i < 200; i++ {
		c1, c2, ok := RandomRange{}.SampleHole(available, rng)
		if !ok {
			t.Fatal("sample from six cards failed")
		}
		if c1 == c2 {
			t.Fatalf("drew %s twice", c1)
		}
		if !pool.Contains(c1) || !pool.Contains(c2) {
			t.Fatalf("drew %s %s outside the pool", c1, c2)
		}
	}

	pair := card.MustParseCards("Ah Kd")
	c1, c2, ok := RandomRange{}.SampleHole(pair, rng)
	if !ok || c1 == c2 {
		t.Fatalf("two-card pool should yield both cards, got %s %s ok=%v", c1, c2, ok)
	}
	if _, _, ok := (RandomRange{}).SampleHole(pair[:1], rng); ok {
		t.Fatal("one-card pool should not yield a holding")
	}
}

func TestTightRangeSamplesPremiumsOnly(t *testing.T) {
	rng := randutil.New(4)
	available := fullDeck(t)
	for i := 0; i < 200; i++ {
		c1, c2, ok := TightRange{}.SampleHole(available, rng)
		if !ok {
			t.Fatal("full deck should always contain a premium holding")
		}
		if !isTightHole(c1, c2) {
			t.Fatalf("%s %s is outside the tight range", c1, c2)
		}
	}

	junk := card.MustParseCards("2h 3c 4d 5s 6h 8d")
	if _, _, ok := (TightRange{}).SampleHole(junk, rng); ok {
		t.Fatal("pool without premiums should exhaust the range")
	}
}

func TestEquityChopsWhenBoardPlays(t *testing.T) {
	hole := card.MustParseCards("2c 3d")
	board := card.MustParseCards("Ah Kh Qh Jh Th")

	// The board is a royal flush, so every showdown is an even chop no
	// matter what anyone holds.
	seq := EstimateEquitySequential(hole, board, 2, RandomRange{}, 100, randutil.New(5))
	inDelta(t, 1.0/3.0, seq, 1e-9)

	par := EstimateEquityParallel(hole, board, 2, RandomRange{}, 1000, randutil.New(6))
	inDelta(t, 1.0/3.0, par, 1e-9)
}

func TestEquityWithLockedNuts(t *testing.T) {
	hole := card.MustParseCards("Ah Th")
	board := card.MustParseCards("Kh Qh Jh")

	// The hero already holds the royal flush and no runout produces a
	// second one, so equity is exactly one.
	got := EstimateEquity(hole, board, 2, RandomRange{}, 200, randutil.New(7))
	if got != 1 {
		t.Fatalf("equity = %v, want exactly 1", got)
	}
}

func TestEquityAcesHeadsUp(t *testing.T) {
	hole := card.MustParseCards("Ah Ad")
	got := EstimateEquity(hole, nil, 1, RandomRange{}, 2000, randutil.New(8))
	inDelta(t, 0.85, got, 0.05)
}

func TestEquityTightRangeIsTougher(t *testing.T) {
	hole := card.MustParseCards("7c 2d")
	vsRandom := EstimateEquity(hole, nil, 1, RandomRange{}, 3000, randutil.New(11))
	vsTight := EstimateEquity(hole, nil, 1, TightRange{}, 3000, randutil.New(12))
	if vsRandom < 0.2 || vsRandom > 0.5 {
		t.Fatalf("seven-deuce vs a random hand = %.4f, expected roughly a third", vsRandom)
	}
	if vsTight >= vsRandom {
		t.Fatalf("equity vs tight range (%.4f) should trail equity vs random (%.4f)", vsTight, vsRandom)
	}
}

func TestParallelAgreesWithSequential(t *testing.T) {
	hole := card.MustParseCards("Ah Ks")
	board := card.MustParseCards("Qs Jh 2c")
	seq := EstimateEquitySequential(hole, board, 1, RandomRange{}, 4000, randutil.New(13))
	par := EstimateEquityParallel(hole, board, 1, RandomRange{}, 4000, randutil.New(14))
	inDelta(t, seq, par, 0.06)
}

func TestEquityRejectsBadInput(t *testing.T) {
	rng := randutil.New(15)
	ok := card.MustParseCards("Ah Ad")
	cases := []struct {
		name      string
		hole      []card.Card
		board     []card.Card
		opponents int
		samples   int
	}{
		{"one hole card", card.MustParseCards("Ah"), nil, 1, 100},
		{"oversized board", ok, card.MustParseCards("2c 3c 4c 5c 6c 7c"), 1, 100},
		{"duplicate across hole and board", ok, card.MustParseCards("Ah 7c 2d"), 1, 100},
		{"no opponents", ok, nil, 0, 100},
		{"no samples", ok, nil, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateEquity(tc.hole, tc.board, tc.opponents, RandomRange{}, tc.samples, rng); got != 0 {
				t.Fatalf("equity = %v, want 0", got)
			}
		})
	}
}
