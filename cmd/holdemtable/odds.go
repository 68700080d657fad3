package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/holdemtable/internal/deck"
	"github.com/lox/holdemtable/internal/evaluator"
	"github.com/lox/holdemtable/internal/randutil"
)

// OddsCmd estimates equity and final-category odds for one hand from the
// command line.
type OddsCmd struct {
	Hand      string `arg:"" help:"Hole cards, e.g. 'AsKd'"`
	Board     string `short:"b" help:"Community cards already dealt, e.g. 'Td7s8h'"`
	Opponents int    `short:"o" default:"1" help:"Number of opponents"`
	Rollouts  int    `short:"n" default:"10000" help:"Monte Carlo rollouts"`
	Seed      int64  `help:"RNG seed for reproducible results (0 for random)"`
}

var (
	oddsHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	oddsHandStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	oddsWinStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	oddsCategoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	oddsPercentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (c *OddsCmd) Run() error {
	hole, err := parseCardRun(c.Hand)
	if err != nil {
		return fmt.Errorf("parsing hand: %w", err)
	}
	if len(hole) != 2 {
		return fmt.Errorf("hand must contain exactly 2 cards, got %d", len(hole))
	}
	var board []deck.Card
	if c.Board != "" {
		board, err = parseCardRun(c.Board)
		if err != nil {
			return fmt.Errorf("parsing board: %w", err)
		}
		if len(board) > 5 {
			return fmt.Errorf("board cannot have more than 5 cards, got %d", len(board))
		}
	}
	if err := rejectDuplicates(hole, board); err != nil {
		return err
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	estimator := evaluator.NewEstimator(evaluator.New(), randutil.New(seed),
		evaluator.WithRollouts(c.Rollouts))

	start := time.Now()
	label, pct, probs, ok := estimator.Annotate(hole, board, c.Opponents)
	if !ok {
		return fmt.Errorf("cannot estimate: not enough cards left for %d opponents", c.Opponents)
	}
	duration := time.Since(start)

	if len(board) > 0 {
		fmt.Printf("%s  %s\n", oddsHeaderStyle.Render("board"), oddsHandStyle.Render(deckString(board)))
	}
	fmt.Printf("%s  %s (%s)\n", oddsHeaderStyle.Render("hand"), oddsHandStyle.Render(deckString(hole)), label)
	fmt.Printf("%s   %s vs %d opponent(s)\n\n", oddsHeaderStyle.Render("win"),
		oddsWinStyle.Render(fmt.Sprintf("%.1f%%", pct)), c.Opponents)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, category := range evaluator.Categories {
		value := "."
		if probs[category] > 0 {
			value = fmt.Sprintf("%.1f%%", probs[category])
		}
		fmt.Fprintf(w, "%s\t%s\n",
			oddsCategoryStyle.Render(category),
			oddsPercentStyle.Render(value))
	}
	w.Flush()

	fmt.Printf("\n%d rollouts in %v\n", c.Rollouts, duration.Truncate(time.Millisecond))
	return nil
}

// parseCardRun splits a concatenated card string ("AsKd") into cards.
func parseCardRun(s string) ([]deck.Card, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("card string %q has odd length", s)
	}
	cards := make([]deck.Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		card, err := deck.Parse(s[i : i+2])
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func rejectDuplicates(groups ...[]deck.Card) error {
	seen := make(map[deck.Card]bool)
	for _, group := range groups {
		for _, card := range group {
			if seen[card] {
				return fmt.Errorf("duplicate card: %s", card)
			}
			seen[card] = true
		}
	}
	return nil
}

func deckString(cards []deck.Card) string {
	return strings.Join(deck.Strings(cards), " ")
}
