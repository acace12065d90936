package evaluator

import (
	"strings"
	"testing"

	"github.com/cardroom/holdemd/internal/card"
)

func mustEval(t *testing.T, codes string) Result {
	t.Helper()
	r, err := Evaluate(card.MustParseCards(codes))
	if err != nil {
		t.Fatalf("Evaluate(%s) returned error: %v", codes, err)
	}
	return r
}

func TestCategories(t *testing.T) {
	cases := []struct {
		name  string
		cards string
		want  Category
	}{
		{"high card", "Ah Kd 9c 5s 2h", HighCard},
		{"one pair", "Ah Ad 9c 5s 2h", OnePair},
		{"two pair", "Ah Ad 9c 9s 2h", TwoPair},
		{"three of a kind", "Ah Ad Ac 9s 2h", ThreeOfAKind},
		{"straight", "9h 8d 7c 6s 5h", Straight},
		{"wheel straight", "Ah 2d 3c 4s 5h", Straight},
		{"flush", "Ah Kh 9h 5h 2h", Flush},
		{"full house", "Ah Ad Ac 9s 9h", FullHouse},
		{"four of a kind", "Ah Ad Ac As 2h", FourOfAKind},
		{"straight flush", "9h 8h 7h 6h 5h", StraightFlush},
		{"wheel straight flush", "Ah 2h 3h 4h 5h", StraightFlush},
		{"royal flush", "Ah Kh Qh Jh Th", RoyalFlush},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := mustEval(t, tc.cards)
			if r.Category != tc.want {
				t.Errorf("category = %v, want %v", r.Category, tc.want)
			}
			if len(r.Best) != 5 {
				t.Errorf("best hand has %d cards, want 5", len(r.Best))
			}
		})
	}
}

func TestSevenCardPicksBestSubset(t *testing.T) {
	// Board pairs the ace and carries a flush draw; the flush beats the
	// two pair the hole cards would otherwise make.
	r := mustEval(t, "Ah Kh 9h 5h 2h As Ks")
	if r.Category != Flush {
		t.Errorf("category = %v, want FLUSH", r.Category)
	}

	// Board plays: all seven cards make the same straight.
	r = mustEval(t, "9h 8d 7c 6s 5h 2c 2d")
	if r.Category != Straight {
		t.Errorf("category = %v, want STRAIGHT", r.Category)
	}
}

func TestWheelOrdering(t *testing.T) {
	wheel := mustEval(t, "Ah 2d 3c 4s 5h")
	six := mustEval(t, "2h 3d 4c 5s 6h")
	trips := mustEval(t, "Ah Ad Ac 9s 2h")
	aceHigh := mustEval(t, "Ah Kd 9c 5s 2h")

	if wheel.Score >= six.Score {
		t.Error("wheel should rank below the six-high straight")
	}
	if wheel.Score <= trips.Score {
		t.Error("wheel should rank above three of a kind")
	}
	if wheel.Score <= aceHigh.Score {
		t.Error("wheel should rank above ace-high")
	}

	wheelSF := mustEval(t, "Ah 2h 3h 4h 5h")
	sixSF := mustEval(t, "2s 3s 4s 5s 6s")
	royal := mustEval(t, "Ah Kh Qh Jh Th")
	if wheelSF.Score >= sixSF.Score {
		t.Error("wheel straight flush should rank below the six-high straight flush")
	}
	if royal.Score <= sixSF.Score {
		t.Error("royal flush should rank above straight flushes")
	}
}

func TestKickersBreakTies(t *testing.T) {
	cases := []struct {
		name   string
		better string
		worse  string
	}{
		{"pair kicker", "Ah Ad Kc 5s 2h", "As Ac Qc 5d 2s"},
		{"two pair low pair", "Ah Ad 9c 9s 2h", "As Ac 8c 8s 2s"},
		{"two pair kicker", "Ah Ad 9c 9s Kh", "As Ac 9d 9h Qh"},
		{"full house pair part", "Ah Ad Ac Ks Kh", "As Ac Ad Qs Qh"},
		{"quads kicker", "Ah Ad Ac As Kh", "Ah Ad Ac As Qh"},
		{"flush second card", "Ah Kh 9h 5h 2h", "As Qs 9s 5s 2s"},
		{"straight high", "Th 9d 8c 7s 6h", "9h 8d 7c 6s 5h"},
		{"high card last kicker", "Ah Kd 9c 5s 3h", "As Kc 9d 5h 2s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := mustEval(t, tc.better)
			w := mustEval(t, tc.worse)
			if b.Score <= w.Score {
				t.Errorf("%s (%#x) should beat %s (%#x)", tc.better, b.Score, tc.worse, w.Score)
			}
		})
	}
}

func TestTiesScoreEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"suits are irrelevant", "Ah Kd 9c 5s 2h", "As Kc 9d 5h 2c"},
		{"equal flushes in different suits", "Ah Kh 9h 5h 2h", "Ad Kd 9d 5d 2d"},
		{"same straight", "9h 8d 7c 6s 5h", "9c 8s 7h 6d 5c"},
		{"board plays for both", "9h 8d 7c 6s 5h 2c Kd", "9h 8d 7c 6s 5h 2d Qs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := mustEval(t, tc.a)
			b := mustEval(t, tc.b)
			if a.Score != b.Score {
				t.Errorf("scores differ: %#x vs %#x", a.Score, b.Score)
			}
		})
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	if _, err := Evaluate(card.MustParseCards("Ah Kd 9c 5s")); err == nil {
		t.Error("four cards should be rejected")
	}
	if _, err := Evaluate(card.MustParseCards("Ah Kd 9c 5s 2h 3h 4h 6h")); err == nil {
		t.Error("eight cards should be rejected")
	}
	if _, err := Evaluate(card.MustParseCards("Ah Ah 9c 5s 2h")); err == nil {
		t.Error("duplicate cards should be rejected")
	}
}

func TestBestHandOrdering(t *testing.T) {
	r := mustEval(t, "9s 9h Ah Ad Ac")
	got := strings.Join(card.Codes(r.Best), " ")
	if got != "Ah Ad Ac 9s 9h" {
		t.Errorf("full house best order = %q", got)
	}

	r = mustEval(t, "Ah 2d 3c 4s 5h")
	got = strings.Join(card.Codes(r.Best), " ")
	if got != "5h 4s 3c 2d Ah" {
		t.Errorf("wheel best order = %q", got)
	}
}

func TestSummary(t *testing.T) {
	r := mustEval(t, "Ah Ad Ac 9s 9h")
	want := "FULL_HOUSE Ah Ad Ac 9s 9h"
	if r.Summary() != want {
		t.Errorf("Summary = %q, want %q", r.Summary(), want)
	}
}
