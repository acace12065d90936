// Command holdem-odds estimates showdown odds. With two or more known hands
// it deals the rest of the board at random and reports win and tie rates for
// each; with a single hand it estimates equity against unseen opponents
// drawing from a chosen range.
package main

import (
	"fmt"
	rand "math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/evaluator"
	"github.com/cardroom/holdemd/internal/randutil"
)

var CLI struct {
	Hands         []string `arg:"" required:"" help:"Hole cards per player, e.g. 'AhKd' '2c2d'"`
	Board         string   `short:"b" help:"Community cards already dealt, e.g. 'Td7s8h'"`
	Iterations    int      `short:"i" default:"20000" help:"Number of Monte Carlo rollouts"`
	Opponents     int      `short:"o" default:"1" help:"Unseen opponents in single-hand mode"`
	Range         string   `enum:"random,tight" default:"random" help:"Range unseen opponents draw from"`
	Possibilities bool     `short:"p" help:"Show per-category probabilities"`
	Seed          *int64   `help:"Random seed for reproducible runs"`
	NoColor       bool     `help:"Disable colored output"`
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	handStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	winStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	tieStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	percentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("holdem-odds"),
		kong.Description("Monte Carlo hold'em odds calculator."),
	)

	if CLI.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	rng := randutil.NewCrypto()
	if CLI.Seed != nil {
		rng = randutil.New(*CLI.Seed)
	}

	hands, err := parseHands(CLI.Hands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing hands: %v\n", err)
		kctx.Exit(1)
	}

	var board []card.Card
	if CLI.Board != "" {
		board, err = card.ParseCards(CLI.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing board: %v\n", err)
			kctx.Exit(1)
		}
		if len(board) > 5 {
			fmt.Fprintln(os.Stderr, "Board cannot have more than 5 cards")
			kctx.Exit(1)
		}
	}

	if err := checkDistinct(hands, board); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		kctx.Exit(1)
	}

	if len(hands) == 1 {
		runEquity(hands[0], board, rng)
		return
	}

	start := time.Now()
	results, err := showdownOdds(hands, board, CLI.Iterations, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		kctx.Exit(1)
	}
	displayResults(results, board, time.Since(start))
}

// runEquity handles single-hand mode through the evaluator's rollouts.
func runEquity(hole, board []card.Card, rng *rand.Rand) {
	var opp evaluator.Range = evaluator.RandomRange{}
	if CLI.Range == "tight" {
		opp = evaluator.TightRange{}
	}

	start := time.Now()
	eq := evaluator.EstimateEquity(hole, board, CLI.Opponents, opp, CLI.Iterations, rng)
	elapsed := time.Since(start)

	if len(board) > 0 {
		fmt.Printf("%s\n%s\n\n", headerStyle.Render("board"), strings.Join(card.Codes(board), " "))
	}
	noun := "opponent"
	if CLI.Opponents != 1 {
		noun = "opponents"
	}
	fmt.Printf("%s vs %d %s %s: %s\n",
		handStyle.Render(strings.Join(card.Codes(hole), " ")),
		CLI.Opponents, CLI.Range, noun,
		winStyle.Render(fmt.Sprintf("%.1f%%", eq*100)))
	fmt.Printf("%d rollouts in %v\n", CLI.Iterations, elapsed.Truncate(time.Millisecond))
}

// playerOdds tallies one known hand's results across the rollouts.
type playerOdds struct {
	hole       []card.Card
	wins       int
	ties       int
	total      int
	categories map[evaluator.Category]int
}

func parseHands(args []string) ([][]card.Card, error) {
	hands := make([][]card.Card, 0, len(args))
	for i, arg := range args {
		h, err := card.ParseCards(arg)
		if err != nil {
			return nil, fmt.Errorf("hand %d: %w", i+1, err)
		}
		if len(h) != 2 {
			return nil, fmt.Errorf("hand %d: need exactly 2 cards, got %d", i+1, len(h))
		}
		hands = append(hands, h)
	}
	return hands, nil
}

func checkDistinct(hands [][]card.Card, board []card.Card) error {
	var seen evaluator.CardSet
	count := 0
	add := func(c card.Card) error {
		seen.Add(c)
		count++
		if seen.Count() != count {
			return fmt.Errorf("duplicate card %s", c)
		}
		return nil
	}
	for _, c := range board {
		if err := add(c); err != nil {
			return err
		}
	}
	for _, h := range hands {
		for _, c := range h {
			if err := add(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// showdownOdds deals the missing board cards at random and scores every
// hand against every runout.
func showdownOdds(hands [][]card.Card, board []card.Card, iterations int, rng *rand.Rand) ([]playerOdds, error) {
	results := make([]playerOdds, len(hands))
	used := evaluator.NewCardSet(board...)
	for i, h := range hands {
		results[i] = playerOdds{hole: h, total: iterations, categories: make(map[evaluator.Category]int)}
		for _, c := range h {
			used.Add(c)
		}
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

	finalBoard := make([]card.Card, 5)
	scratch := make([]card.Card, 0, len(available))
	seven := make([]card.Card, 0, 7)
	scores := make([]uint32, len(hands))

	for iter := 0; iter < iterations; iter++ {
		scratch = append(scratch[:0], available...)
		n := copy(finalBoard, board)
		for ; n < 5; n++ {
			j := rng.IntN(len(scratch))
			finalBoard[n] = scratch[j]
			scratch[j] = scratch[len(scratch)-1]
			scratch = scratch[:len(scratch)-1]
		}

		best := uint32(0)
		for i, h := range hands {
			seven = append(append(seven[:0], h...), finalBoard...)
			r, err := evaluator.Evaluate(seven)
			if err != nil {
				return nil, err
			}
			scores[i] = r.Score
			results[i].categories[r.Category]++
			if r.Score > best {
				best = r.Score
			}
		}

		winners := 0
		for _, s := range scores {
			if s == best {
				winners++
			}
		}
		for i, s := range scores {
			if s != best {
				continue
			}
			if winners == 1 {
				results[i].wins++
			} else {
				results[i].ties++
			}
		}
	}
	return results, nil
}

func displayResults(results []playerOdds, board []card.Card, elapsed time.Duration) {
	if len(board) > 0 {
		fmt.Printf("%s\n%s\n\n", headerStyle.Render("board"), strings.Join(card.Codes(board), " "))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		headerStyle.Render("hand"),
		headerStyle.Render("win"),
		headerStyle.Render("tie"))
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			handStyle.Render(strings.Join(card.Codes(r.hole), " ")),
			winStyle.Render(fmt.Sprintf("%.1f%%", pct(r.wins, r.total))),
			tieStyle.Render(fmt.Sprintf("%.1f%%", pct(r.ties, r.total))))
	}
	_ = w.Flush()

	if CLI.Possibilities {
		fmt.Println()
		displayPossibilities(results)
	}

	fmt.Printf("\n%d rollouts in %v\n", CLI.Iterations, elapsed.Truncate(time.Millisecond))
}

var categoryOrder = []evaluator.Category{
	evaluator.RoyalFlush,
	evaluator.StraightFlush,
	evaluator.FourOfAKind,
	evaluator.FullHouse,
	evaluator.Flush,
	evaluator.Straight,
	evaluator.ThreeOfAKind,
	evaluator.TwoPair,
	evaluator.OnePair,
	evaluator.HighCard,
}

func displayPossibilities(results []playerOdds) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s", categoryStyle.Render("category"))
	for _, r := range results {
		fmt.Fprintf(w, "\t%s", handStyle.Render(strings.Join(card.Codes(r.hole), " ")))
	}
	fmt.Fprintln(w)

	for _, cat := range categoryOrder {
		hit := false
		for _, r := range results {
			if r.categories[cat] > 0 {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		fmt.Fprintf(w, "%s", categoryStyle.Render(prettyCategory(cat)))
		for _, r := range results {
			if n := r.categories[cat]; n > 0 {
				fmt.Fprintf(w, "\t%s", percentStyle.Render(fmt.Sprintf("%.1f%%", pct(n, r.total))))
			} else {
				fmt.Fprintf(w, "\t%s", percentStyle.Render("."))
			}
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
}

func prettyCategory(c evaluator.Category) string {
	return strings.ReplaceAll(strings.ToLower(c.String()), "_", " ")
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
