package game

import (
	"fmt"
	"maps"
	"slices"

	"github.com/lox/holdemtable/internal/deck"
)

// Snapshot is a serializable copy of a hand in progress: enough state to
// clone an engine for rollouts or to reload a recorded hand for training.
type Snapshot struct {
	Players       []string               `json:"players"`
	Button        string                 `json:"button"`
	HandID        int                    `json:"hand_id"`
	Street        Street                 `json:"street"`
	Board         []deck.Card            `json:"board"`
	HoleCards     map[string][]deck.Card `json:"hole_cards"`
	Remaining     []deck.Card            `json:"remaining,omitempty"`
	Stacks        map[string]int         `json:"stacks"`
	Contributions map[string]int         `json:"bets"`
	Pot           int                    `json:"pot"`
	CurrentBet    int                    `json:"current_bet"`
	LastRaiseSize int                    `json:"last_raise_size"`
	CurrentPlayer string                 `json:"current_player"`
	Pending       []string               `json:"pending_players"`
	Folded        []string               `json:"folded_players"`
	AllIn         []string               `json:"all_in_players"`
	History       []ActionRecord         `json:"action_history"`
	HandStacks    map[string]int         `json:"hand_stacks"`
	HandOver      bool                   `json:"hand_over"`
	Winners       []string               `json:"winners,omitempty"`
	HandComplete  bool                   `json:"hand_complete"`
}

// Snapshot captures the current hand state.
func (e *Engine) Snapshot() Snapshot {
	b := e.Betting
	return Snapshot{
		Players:       slices.Clone(e.players),
		Button:        e.players[e.button],
		HandID:        e.handID,
		Street:        e.street,
		Board:         slices.Clone(e.board),
		HoleCards:     cloneCards(e.holeCards),
		Remaining:     e.deckCards(),
		Stacks:        maps.Clone(b.Stacks),
		Contributions: maps.Clone(b.Contributions),
		Pot:           b.Pot,
		CurrentBet:    b.CurrentBet,
		LastRaiseSize: b.LastRaiseSize,
		CurrentPlayer: b.CurrentPlayer,
		Pending:       setToSlice(e.players, b.Pending),
		Folded:        setToSlice(e.players, b.Folded),
		AllIn:         setToSlice(e.players, b.AllIn),
		History:       slices.Clone(b.History),
		HandStacks:    maps.Clone(e.handStacks),
		HandOver:      b.HandOver,
		Winners:       slices.Clone(b.Winners),
		HandComplete:  e.handComplete,
	}
}

// LoadHand restores a previously captured hand onto this engine. The
// snapshot's seats must match the engine's.
func (e *Engine) LoadHand(s Snapshot) error {
	if !slices.Equal(s.Players, e.players) {
		return fmt.Errorf("snapshot seats %v do not match table seats %v", s.Players, e.players)
	}
	btn := e.seatIndex(s.Button)
	if btn < 0 {
		return fmt.Errorf("snapshot button %q is not seated", s.Button)
	}

	e.button = btn
	e.handID = s.HandID
	e.street = s.Street
	e.board = slices.Clone(s.Board)
	e.holeCards = cloneCards(s.HoleCards)
	e.deck = deck.Stacked(s.Remaining)
	e.handComplete = s.HandComplete
	e.handStacks = maps.Clone(s.HandStacks)
	e.showdownScores = nil
	e.revealed = nil
	e.pendingEvents = nil

	handPlayers := make([]string, 0, len(s.HoleCards))
	for _, p := range e.players {
		if _, ok := s.HoleCards[p]; ok {
			handPlayers = append(handPlayers, p)
		}
	}

	b := e.Betting
	b.Players = handPlayers
	b.Stacks = maps.Clone(s.Stacks)
	b.Contributions = maps.Clone(s.Contributions)
	for _, p := range e.players {
		if _, ok := b.Contributions[p]; !ok {
			b.Contributions[p] = 0
		}
	}
	b.Pot = s.Pot
	b.CurrentBet = s.CurrentBet
	b.LastRaiseSize = s.LastRaiseSize
	b.CurrentPlayer = s.CurrentPlayer
	b.Pending = sliceToSet(s.Pending)
	b.Folded = sliceToSet(s.Folded)
	b.AllIn = sliceToSet(s.AllIn)
	b.History = slices.Clone(s.History)
	b.HandOver = s.HandOver
	b.Winners = slices.Clone(s.Winners)
	return nil
}

// Clone returns an independent engine at the same hand state, sharing no
// mutable data with the original. Rollouts step the clone freely.
func (e *Engine) Clone() *Engine {
	clone := &Engine{
		players: slices.Clone(e.players),
		eval:    e.eval,
		rng:     e.rng,
		Betting: NewBettingState(e.Betting.SmallBlind, e.Betting.BigBlind, e.Betting.StartingStack),
	}
	if err := clone.LoadHand(e.Snapshot()); err != nil {
		panic("engine: clone of own snapshot failed: " + err.Error())
	}
	return clone
}

func (e *Engine) deckCards() []deck.Card {
	if e.deck == nil {
		return nil
	}
	return e.deck.Cards()
}

func cloneCards(in map[string][]deck.Card) map[string][]deck.Card {
	out := make(map[string][]deck.Card, len(in))
	for seat, cards := range in {
		out[seat] = slices.Clone(cards)
	}
	return out
}

func setToSlice(order []string, set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, seat := range order {
		if set[seat] {
			out = append(out, seat)
		}
	}
	return out
}

func sliceToSet(seats []string) map[string]bool {
	set := make(map[string]bool, len(seats))
	for _, seat := range seats {
		set[seat] = true
	}
	return set
}
