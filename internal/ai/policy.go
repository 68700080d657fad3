// Package ai provides the decision policies that drive machine-controlled
// seats: uniform random, a deliberately tame passive policy, and a trained
// strategy-table policy keyed by bucketed infosets.
package ai

import (
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtable/internal/game"
)

// Policy picks an action from an observation. Implementations must return
// an action drawn from the observation's legal set.
type Policy interface {
	Decide(obs game.Observation) (game.Action, error)
}

// RandomPolicy picks uniformly over legal actions, with a uniform raise
// target in [minRaiseTo, maxRaiseTo]. It is the reference policy.
type RandomPolicy struct {
	rng *rand.Rand
}

func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{rng: rng}
}

func (p *RandomPolicy) Decide(obs game.Observation) (game.Action, error) {
	if len(obs.LegalActions) == 0 {
		return game.Action{}, fmt.Errorf("no legal actions for %s", obs.CurrentPlayer)
	}
	kind := obs.LegalActions[p.rng.IntN(len(obs.LegalActions))]
	if kind != game.Raise {
		return game.Action{Kind: kind}, nil
	}
	return game.RaiseTo(p.sampleRaise(obs)), nil
}

func (p *RandomPolicy) sampleRaise(obs game.Observation) int {
	if obs.MaxRaiseTo < obs.MinRaiseTo {
		return obs.MaxRaiseTo
	}
	return obs.MinRaiseTo + p.rng.IntN(obs.MaxRaiseTo-obs.MinRaiseTo+1)
}

// PassivePolicy checks when it can, calls when it must, and only raises the
// minimum when nothing else is legal. Useful for deterministic integration
// tests and as a gentle opponent.
type PassivePolicy struct{}

func NewPassivePolicy() *PassivePolicy { return &PassivePolicy{} }

func (*PassivePolicy) Decide(obs game.Observation) (game.Action, error) {
	legal := make(map[game.ActionKind]bool, len(obs.LegalActions))
	for _, kind := range obs.LegalActions {
		legal[kind] = true
	}
	for _, kind := range []game.ActionKind{game.Check, game.Call, game.Fold, game.Raise} {
		if !legal[kind] {
			continue
		}
		if kind == game.Raise {
			return game.RaiseTo(obs.MinRaiseTo), nil
		}
		return game.Action{Kind: kind}, nil
	}
	return game.Action{}, fmt.Errorf("no legal actions for %s", obs.CurrentPlayer)
}

// Strategy maps infoset ids to action probability rows.
type Strategy map[string]map[string]float64

// LoadStrategy reads a strategy table from a JSON file. Malformed rows are
// skipped rather than failing the whole load, so a partially written table
// still plays.
func LoadStrategy(path string) (Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy: %w", err)
	}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing strategy: %w", err)
	}
	strategy := make(Strategy, len(raw))
	for infoset, row := range raw {
		if len(row) == 0 {
			continue
		}
		strategy[infoset] = row
	}
	return strategy, nil
}

// StrategyPolicy looks up a trained action distribution by bucketed infoset
// id, trying the detailed (card-aware) infoset first and the abstract
// (card-blind) one second. Misses fall back to uniform random.
type StrategyPolicy struct {
	strategy Strategy
	rng      *rand.Rand
	fallback *RandomPolicy
}

func NewStrategyPolicy(strategy Strategy, rng *rand.Rand) *StrategyPolicy {
	return &StrategyPolicy{
		strategy: strategy,
		rng:      rng,
		fallback: NewRandomPolicy(rng),
	}
}

func (p *StrategyPolicy) Decide(obs game.Observation) (game.Action, error) {
	if len(obs.LegalActions) == 0 {
		return game.Action{}, fmt.Errorf("no legal actions for %s", obs.CurrentPlayer)
	}
	kind, ok := p.lookup(obs)
	if !ok {
		return p.fallback.Decide(obs)
	}
	if kind != game.Raise {
		return game.Action{Kind: kind}, nil
	}
	return game.RaiseTo(p.fallback.sampleRaise(obs)), nil
}

func (p *StrategyPolicy) lookup(obs game.Observation) (game.ActionKind, bool) {
	if len(p.strategy) == 0 || obs.CurrentPlayer == "" {
		return 0, false
	}
	legal := make(map[game.ActionKind]bool, len(obs.LegalActions))
	for _, kind := range obs.LegalActions {
		legal[kind] = true
	}

	for _, infoset := range p.infosetCandidates(obs) {
		row, ok := p.strategy[infoset]
		if !ok {
			continue
		}
		var kinds []game.ActionKind
		var weights []float64
		for name, prob := range row {
			kind, err := game.ParseActionKind(name)
			if err != nil || !legal[kind] || prob <= 0 {
				continue
			}
			kinds = append(kinds, kind)
			weights = append(weights, prob)
		}
		if len(kinds) > 0 {
			return kinds[weightedIndex(p.rng, weights)], true
		}
	}
	return 0, false
}

func (p *StrategyPolicy) infosetCandidates(obs game.Observation) []string {
	bigBlind := obs.BigBlind
	if bigBlind <= 0 {
		for _, bet := range obs.Bets {
			if bet > bigBlind {
				bigBlind = bet
			}
		}
	}
	if bigBlind <= 0 {
		bigBlind = 10
	}
	stack := obs.Stacks[obs.CurrentPlayer]

	detailed := ComputeInfosetID(obs.CurrentPlayer, obs.Hole, obs.Board, obs.Street, obs.History, obs.Pot, stack, bigBlind)
	abstract := ComputeInfosetID(obs.CurrentPlayer, nil, obs.Board, obs.Street, obs.History, obs.Pot, stack, bigBlind)
	if abstract == detailed {
		return []string{detailed}
	}
	return []string{detailed, abstract}
}

func weightedIndex(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Modes that select the strategy-table policy.
var strategyModes = map[string]bool{"strategy": true, "mccfr": true}

// ForMode builds the policy named by mode: "passive", "strategy" (or
// "mccfr", loading the table at strategyPath), anything else random. A
// strategy table that fails to load degrades to random with a warning.
func ForMode(mode, strategyPath string, rng *rand.Rand, logger *log.Logger) Policy {
	switch {
	case mode == "passive":
		return NewPassivePolicy()
	case strategyModes[mode]:
		strategy, err := LoadStrategy(strategyPath)
		if err != nil {
			logger.Warn("strategy table unavailable, falling back to random", "path", strategyPath, "err", err)
			return NewRandomPolicy(rng)
		}
		logger.Info("loaded strategy table", "path", strategyPath, "infosets", len(strategy))
		return NewStrategyPolicy(strategy, rng)
	default:
		return NewRandomPolicy(rng)
	}
}
