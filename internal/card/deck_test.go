package card

import (
	"testing"

	"github.com/cardroom/holdemd/internal/randutil"
)

func TestNewDeckHas52UniqueCards(t *testing.T) {
	d := NewDeck(randutil.New(1))
	if d.Size() != 52 {
		t.Fatalf("deck size = %d, want 52", d.Size())
	}

	seen := make(map[Card]bool)
	cards, err := d.Deal(52)
	if err != nil {
		t.Fatalf("Deal(52) returned error: %v", err)
	}
	for _, c := range cards {
		if !c.Valid() {
			t.Errorf("dealt invalid card %v", c)
		}
		if seen[c] {
			t.Errorf("duplicate card %v", c)
		}
		seen[c] = true
	}
}

func TestDealExhaustion(t *testing.T) {
	d := NewDeck(randutil.New(2))
	d.Shuffle()

	if _, err := d.Deal(50); err != nil {
		t.Fatalf("Deal(50) returned error: %v", err)
	}
	if d.Remaining() != 2 {
		t.Errorf("Remaining = %d, want 2", d.Remaining())
	}
	if _, err := d.Deal(3); err == nil {
		t.Error("Deal(3) with 2 remaining should fail")
	}
	// A failed deal must not advance the pointer.
	if d.Remaining() != 2 {
		t.Errorf("Remaining after failed deal = %d, want 2", d.Remaining())
	}
	if _, err := d.Deal(2); err != nil {
		t.Errorf("Deal(2) returned error: %v", err)
	}
	if _, err := d.DealOne(); err == nil {
		t.Error("DealOne on empty deck should fail")
	}
}

func TestShuffleResetsPointer(t *testing.T) {
	d := NewDeck(randutil.New(3))
	d.Shuffle()
	if _, err := d.Deal(10); err != nil {
		t.Fatalf("Deal(10) returned error: %v", err)
	}
	d.Shuffle()
	if d.Remaining() != 52 {
		t.Errorf("Remaining after reshuffle = %d, want 52", d.Remaining())
	}
}

func TestShuffleIsSeedDeterministic(t *testing.T) {
	a := NewDeck(randutil.New(42))
	b := NewDeck(randutil.New(42))
	a.Shuffle()
	b.Shuffle()

	ca, _ := a.Deal(52)
	cb, _ := b.Deal(52)
	for i := range ca {
		if ca[i] != cb[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, ca[i], cb[i])
		}
	}

	c := NewDeck(randutil.New(43))
	c.Shuffle()
	cc, _ := c.Deal(52)
	same := true
	for i := range ca {
		if ca[i] != cc[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical order")
	}
}

func TestRemoveAll(t *testing.T) {
	d := NewDeck(randutil.New(4))
	known := MustParseCards("Ah Kh Qh")
	d.RemoveAll(known...)

	if d.Size() != 49 {
		t.Fatalf("size after RemoveAll = %d, want 49", d.Size())
	}
	cards, err := d.Deal(49)
	if err != nil {
		t.Fatalf("Deal(49) returned error: %v", err)
	}
	for _, c := range cards {
		for _, k := range known {
			if c == k {
				t.Errorf("removed card %v was dealt", c)
			}
		}
	}
}
