// Package evaluator scores seven-card poker hands and estimates hand
// strength by Monte Carlo rollout. Scoring is backed by the chehsunliu
// lookup-table evaluator, where lower scores are stronger hands.
package evaluator

import (
	chpoker "github.com/chehsunliu/poker"

	"github.com/lox/holdemtable/internal/deck"
)

// Categories in strength order, strongest first. Keys for category
// probability maps.
var Categories = []string{
	"Straight Flush",
	"Four of a Kind",
	"Full House",
	"Flush",
	"Straight",
	"Three of a Kind",
	"Two Pair",
	"Pair",
	"High Card",
}

// Evaluator scores hole+board combinations. The zero value is ready to use.
type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Score evaluates the best five-card hand from hole and board cards.
// Lower is better.
func (*Evaluator) Score(hole, board []deck.Card) int32 {
	cards := make([]chpoker.Card, 0, len(hole)+len(board))
	for _, c := range hole {
		cards = append(cards, chpoker.NewCard(c.String()))
	}
	for _, c := range board {
		cards = append(cards, chpoker.NewCard(c.String()))
	}
	return chpoker.Evaluate(cards)
}

// Category names the hand class a score belongs to, e.g. "Two Pair".
func (*Evaluator) Category(score int32) string {
	return chpoker.RankString(score)
}
