package evaluator

import (
	"math"
	rand "math/rand/v2"

	"github.com/lox/holdemtable/internal/deck"
)

// DefaultRollouts balances annotation latency against estimate noise.
const DefaultRollouts = 120

// Estimator approximates a viewer's equity and final hand-category
// distribution by dealing random runouts against random opponent holdings.
// It carries its own RNG so estimation never perturbs dealing.
type Estimator struct {
	eval     *Evaluator
	rng      *rand.Rand
	rollouts int
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithRollouts overrides the rollout count.
func WithRollouts(n int) EstimatorOption {
	return func(s *Estimator) { s.rollouts = n }
}

// NewEstimator builds an estimator around the given evaluator and RNG.
func NewEstimator(eval *Evaluator, rng *rand.Rand, opts ...EstimatorOption) *Estimator {
	s := &Estimator{eval: eval, rng: rng, rollouts: DefaultRollouts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Annotate labels the hand and estimates win probability and category
// distribution against the given number of opponents. ok is false when the
// inputs cannot be estimated (wrong card count, impossible draw).
func (s *Estimator) Annotate(hole, board []deck.Card, opponents int) (string, float64, map[string]float64, bool) {
	if len(hole) != 2 {
		return "", 0, nil, false
	}

	label := s.label(hole, board)

	if opponents < 0 {
		opponents = 0
	}
	remaining := unseenCards(hole, board)
	boardNeeded := 5 - len(board)
	if boardNeeded < 0 {
		boardNeeded = 0
	}
	drawCount := boardNeeded + 2*opponents
	if drawCount > len(remaining) {
		return label, 0, zeroProbs(), true
	}

	rollouts := s.rollouts
	if rollouts < 1 {
		rollouts = 1
	}

	equitySum := 0.0
	counts := make(map[string]int, len(Categories))
	for range rollouts {
		drawn := s.sample(remaining, drawCount)
		fullBoard := append(append(make([]deck.Card, 0, 5), board...), drawn[:boardNeeded]...)

		heroScore := s.eval.Score(hole, fullBoard)
		counts[s.eval.Category(heroScore)]++

		if opponents == 0 {
			equitySum++
			continue
		}

		best := heroScore
		ties := 1
		heroBest := true
		for i := range opponents {
			oppHole := drawn[boardNeeded+2*i : boardNeeded+2*i+2]
			score := s.eval.Score(oppHole, fullBoard)
			switch {
			case score < best:
				best = score
				ties = 1
				heroBest = false
			case score == best:
				ties++
			}
		}
		if heroBest {
			equitySum += 1.0 / float64(ties)
		}
	}

	probs := make(map[string]float64, len(Categories))
	for _, category := range Categories {
		probs[category] = round1(float64(counts[category]) * 100.0 / float64(rollouts))
	}
	return label, round1(equitySum * 100.0 / float64(rollouts)), probs, true
}

func (s *Estimator) label(hole, board []deck.Card) string {
	if len(board) >= 3 {
		return s.eval.Category(s.eval.Score(hole, board))
	}
	switch {
	case hole[0].Rank == hole[1].Rank:
		return "Pocket Pair"
	case hole[0].Suit == hole[1].Suit:
		return "Suited"
	default:
		return "High Card"
	}
}

// sample draws n distinct cards via a partial Fisher-Yates over a copy.
func (s *Estimator) sample(pool []deck.Card, n int) []deck.Card {
	cards := make([]deck.Card, len(pool))
	copy(cards, pool)
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(cards)-i)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return cards[:n]
}

func unseenCards(hole, board []deck.Card) []deck.Card {
	seen := make(map[deck.Card]bool, len(hole)+len(board))
	for _, c := range hole {
		seen[c] = true
	}
	for _, c := range board {
		seen[c] = true
	}
	all := deck.New().Cards()
	out := make([]deck.Card, 0, len(all))
	for _, c := range all {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func zeroProbs() map[string]float64 {
	probs := make(map[string]float64, len(Categories))
	for _, category := range Categories {
		probs[category] = 0
	}
	return probs
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
