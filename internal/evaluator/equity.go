package evaluator

import (
	"context"
	"math/bits"
	rand "math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/randutil"
)

// CardSet is a 52-bit set of cards. Rollouts track dealt cards with it
// instead of maps; copying one is a single word.
type CardSet uint64

func cardBit(c card.Card) CardSet {
	return 1 << (int(c.Suit)*13 + int(c.Rank) - int(card.Two))
}

// Add puts c in the set.
func (s *CardSet) Add(c card.Card) { *s |= cardBit(c) }

// Contains reports whether c is in the set.
func (s CardSet) Contains(c card.Card) bool { return s&cardBit(c) != 0 }

// Count returns the number of cards in the set.
func (s CardSet) Count() int { return bits.OnesCount64(uint64(s)) }

// NewCardSet builds a set from the given cards.
func NewCardSet(cards ...card.Card) CardSet {
	var s CardSet
	for _, c := range cards {
		s.Add(c)
	}
	return s
}

// Range models the hole cards an unseen opponent might hold. SampleHole
// draws one holding from the cards still available; ok is false when the
// range has no holding among them.
type Range interface {
	SampleHole(available []card.Card, rng *rand.Rand) (c1, c2 card.Card, ok bool)
}

// RandomRange holds any two cards.
type RandomRange struct{}

// SampleHole draws two distinct cards uniformly.
func (RandomRange) SampleHole(available []card.Card, rng *rand.Rand) (card.Card, card.Card, bool) {
	if len(available) < 2 {
		return card.Card{}, card.Card{}, false
	}
	i := rng.IntN(len(available))
	j := rng.IntN(len(available) - 1)
	if j >= i {
		j++
	}
	return available[i], available[j], true
}

// tightAttempts bounds the rejection sampling in TightRange so a board that
// has consumed every premium card cannot spin forever.
const tightAttempts = 64

// TightRange holds premium starts only: pocket pairs of sevens or better,
// or two cards both ten or higher.
type TightRange struct{}

// SampleHole draws random holdings until one falls inside the range.
func (TightRange) SampleHole(available []card.Card, rng *rand.Rand) (card.Card, card.Card, bool) {
	if len(available) < 2 {
		return card.Card{}, card.Card{}, false
	}
	for attempt := 0; attempt < tightAttempts; attempt++ {
		c1, c2, _ := RandomRange{}.SampleHole(available, rng)
		if isTightHole(c1, c2) {
			return c1, c2, true
		}
	}
	return card.Card{}, card.Card{}, false
}

func isTightHole(c1, c2 card.Card) bool {
	if c1.Rank == c2.Rank {
		return c1.Rank >= card.Seven
	}
	return c1.Rank >= card.Ten && c2.Rank >= card.Ten
}

// parallelThreshold is the sample count above which the rollout is split
// across workers.
const parallelThreshold = 500

// EstimateEquity estimates the pot share a two-card holding collects at
// showdown against the given number of opponents, each drawing hole cards
// from opp. The board may be any dealt prefix of the community cards. An
// outright win counts as a full pot, a chop as the fractional share, so the
// result is directly comparable to pot odds. Invalid input returns 0.
func EstimateEquity(hole, board []card.Card, opponents int, opp Range, samples int, rng *rand.Rand) float64 {
	if samples >= parallelThreshold {
		return EstimateEquityParallel(hole, board, opponents, opp, samples, rng)
	}
	return EstimateEquitySequential(hole, board, opponents, opp, samples, rng)
}

// EstimateEquitySequential runs every rollout on the calling goroutine.
func EstimateEquitySequential(hole, board []card.Card, opponents int, opp Range, samples int, rng *rand.Rand) float64 {
	available, used, ok := rolloutInputs(hole, board, opponents)
	if !ok {
		return 0
	}
	t := runRollouts(hole, board, available, used, opponents, opp, samples, rng)
	if t.samples == 0 {
		return 0
	}
	return t.shares / float64(t.samples)
}

// EstimateEquityParallel splits the rollout across workers with one RNG
// per worker, seeded from the caller's, so runs stay reproducible and the
// workers never contend.
func EstimateEquityParallel(hole, board []card.Card, opponents int, opp Range, samples int, rng *rand.Rand) float64 {
	available, used, ok := rolloutInputs(hole, board, opponents)
	if !ok {
		return 0
	}

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers > samples {
		workers = samples
	}
	perWorker := samples / workers
	remainder := samples % workers

	g, ctx := errgroup.WithContext(context.Background())
	results := make(chan equityTally, workers)
	for w := 0; w < workers; w++ {
		n := perWorker
		if w < remainder {
			n++
		}
		seed := rng.Int64()
		g.Go(func() error {
			t := runRollouts(hole, board, available, used, opponents, opp, n, randutil.New(seed))
			select {
			case results <- t:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	go func() {
		defer close(results)
		_ = g.Wait()
	}()

	var total equityTally
	for t := range results {
		total.shares += t.shares
		total.samples += t.samples
	}
	if err := g.Wait(); err != nil {
		return EstimateEquitySequential(hole, board, opponents, opp, samples, rng)
	}
	if total.samples == 0 {
		return 0
	}
	return total.shares / float64(total.samples)
}

// equityTally accumulates pot shares over the rollouts that completed.
type equityTally struct {
	shares  float64
	samples int
}

// rolloutInputs validates the holding and board and builds the shared pool
// of undealt cards. Workers read the pool concurrently and never mutate it.
func rolloutInputs(hole, board []card.Card, opponents int) ([]card.Card, CardSet, bool) {
	if len(hole) != 2 || len(board) > 5 || opponents < 1 {
		return nil, 0, false
	}
	used := NewCardSet(hole...)
	for _, c := range board {
		used.Add(c)
	}
	if used.Count() != len(hole)+len(board) {
		return nil, 0, false
	}
	available := make([]card.Card, 0, 52-used.Count())
	for suit := card.Hearts; suit <= card.Spades; suit++ {
		for rank := card.Two; rank <= card.Ace; rank++ {
			c := card.New(rank, suit)
			if !used.Contains(c) {
				available = append(available, c)
			}
		}
	}
	return available, used, true
}

func runRollouts(hole, board, available []card.Card, used CardSet, opponents int, opp Range, samples int, rng *rand.Rand) equityTally {
	var t equityTally

	finalBoard := make([]card.Card, 5)
	heroCards := make([]card.Card, 0, 7)
	oppCards := make([]card.Card, 0, 7)
	candidates := make([]card.Card, 0, len(available))
	oppHoles := make([]card.Card, 0, 2*opponents)
	oppScores := make([]uint32, opponents)

	for i := 0; i < samples; i++ {
		taken := used
		oppHoles = oppHoles[:0]
		candidates = append(candidates[:0], available...)

		drewAll := true
		for o := 0; o < opponents; o++ {
			c1, c2, ok := opp.SampleHole(candidates, rng)
			if !ok {
				drewAll = false
				break
			}
			taken.Add(c1)
			taken.Add(c2)
			oppHoles = append(oppHoles, c1, c2)
			candidates = without(candidates, c1, c2)
		}
		if !drewAll {
			continue
		}

		// Run out the board with a partial Fisher-Yates over what is left.
		n := copy(finalBoard, board)
		for ; n < 5; n++ {
			j := rng.IntN(len(candidates))
			finalBoard[n] = candidates[j]
			candidates[j] = candidates[len(candidates)-1]
			candidates = candidates[:len(candidates)-1]
		}

		heroCards = append(append(heroCards[:0], hole...), finalBoard...)
		hero, err := Evaluate(heroCards)
		if err != nil {
			continue
		}
		spoiled := false
		for o := range oppScores {
			oppCards = append(append(oppCards[:0], oppHoles[2*o], oppHoles[2*o+1]), finalBoard...)
			r, err := Evaluate(oppCards)
			if err != nil {
				spoiled = true
				break
			}
			oppScores[o] = r.Score
		}
		if spoiled {
			continue
		}

		t.samples++
		winners := 1
		ahead := true
		for _, s := range oppScores {
			if s > hero.Score {
				ahead = false
				break
			}
			if s == hero.Score {
				winners++
			}
		}
		if ahead {
			t.shares += 1 / float64(winners)
		}
	}
	return t
}

// without compacts candidates in place, dropping the two cards just dealt.
func without(candidates []card.Card, c1, c2 card.Card) []card.Card {
	out := candidates[:0]
	for _, c := range candidates {
		if c != c1 && c != c2 {
			out = append(out, c)
		}
	}
	return out
}
