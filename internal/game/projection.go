package game

import (
	"maps"
	"slices"

	"github.com/lox/holdemtable/internal/deck"
)

// HistoryLimit caps the action history included in client projections.
const HistoryLimit = 10

// Annotator estimates a viewer's hand strength for UI display. Optional;
// wired in with WithAnnotator.
type Annotator interface {
	Annotate(hole, board []deck.Card, opponents int) (label string, winPct float64, categoryProbs map[string]float64, ok bool)
}

// WithAnnotator attaches a hand-strength estimator whose output is included
// in per-viewer projections.
func WithAnnotator(a Annotator) Option {
	return func(e *Engine) { e.annotator = a }
}

// PublicState is the per-viewer projection sent to clients. Hole cards are
// redacted to the viewer's own outside of showdown.
type PublicState struct {
	SessionID        string              `json:"session_id,omitempty"`
	Street           Street              `json:"street"`
	Pot              int                 `json:"pot"`
	CommunityCards   []deck.Card         `json:"community_cards"`
	PlayerHand       []deck.Card         `json:"player_hand,omitempty"`
	RevealedHands    map[string][]string `json:"revealed_hands,omitempty"`
	FoldedPlayers    []string            `json:"folded_players"`
	Stacks           map[string]int      `json:"stacks"`
	Bets             map[string]int      `json:"bets"`
	ButtonPlayer     string              `json:"button_player"`
	SmallBlindPlayer string              `json:"small_blind_player"`
	BigBlindPlayer   string              `json:"big_blind_player"`
	CurrentPlayer    string              `json:"current_player,omitempty"`
	LegalActions     []ActionKind        `json:"legal_actions"`
	ToCall           *int                `json:"to_call,omitempty"`
	MinRaiseTo       *int                `json:"min_raise_to,omitempty"`
	MaxRaiseTo       *int                `json:"max_raise_to,omitempty"`
	ActionHistory    []ActionRecord      `json:"action_history"`

	HandStrengthLabel string             `json:"hand_strength_label,omitempty"`
	HandStrengthPct   *float64           `json:"hand_strength_pct,omitempty"`
	HandCategoryProbs map[string]float64 `json:"hand_category_probs,omitempty"`

	AwaitingHandContinue bool `json:"awaiting_hand_continue"`
}

// PublicState projects the table for one viewer. Only the viewer's hole
// cards are included until showdown, when every non-folded hand is revealed.
func (e *Engine) PublicState(viewer, sessionID string) PublicState {
	b := e.Betting
	state := PublicState{
		SessionID:        sessionID,
		Street:           e.street,
		Pot:              b.Pot,
		CommunityCards:   slices.Clone(e.board),
		PlayerHand:       slices.Clone(e.holeCards[viewer]),
		FoldedPlayers:    setToSlice(e.players, b.Folded),
		Stacks:           maps.Clone(b.Stacks),
		Bets:             maps.Clone(b.Contributions),
		ButtonPlayer:     e.players[e.button],
		SmallBlindPlayer: e.sbSeat,
		BigBlindPlayer:   e.bbSeat,
		CurrentPlayer:    b.CurrentPlayer,
		LegalActions:     b.LegalActions(),
		ActionHistory:    tailHistory(b.History, HistoryLimit),
	}
	if state.LegalActions == nil {
		state.LegalActions = []ActionKind{}
	}
	if state.FoldedPlayers == nil {
		state.FoldedPlayers = []string{}
	}
	if state.CommunityCards == nil {
		state.CommunityCards = []deck.Card{}
	}
	if state.ActionHistory == nil {
		state.ActionHistory = []ActionRecord{}
	}

	if actor := b.CurrentPlayer; actor != "" {
		toCall := b.ToCall(actor)
		minTo := b.MinRaiseTo()
		maxTo := b.MaxRaiseTo(actor)
		state.ToCall = &toCall
		state.MinRaiseTo = &minTo
		state.MaxRaiseTo = &maxTo
	}

	if e.street == Showdown || b.HandOver {
		revealed := make(map[string][]string)
		for seat, cards := range e.holeCards {
			if b.Folded[seat] {
				continue
			}
			revealed[seat] = deck.Strings(cards)
		}
		state.RevealedHands = revealed
	}

	e.annotate(&state, viewer)
	return state
}

func (e *Engine) annotate(state *PublicState, viewer string) {
	hole := e.holeCards[viewer]
	if len(hole) != 2 {
		return
	}

	// A cheap label is always available; the estimator fills in equity.
	if len(e.board) >= 3 && e.annotator == nil {
		state.HandStrengthLabel = e.eval.Category(e.eval.Score(hole, e.board))
	} else if e.annotator == nil {
		state.HandStrengthLabel = preflopLabel(hole)
	}
	if e.annotator == nil {
		return
	}

	opponents := 0
	for _, p := range e.Betting.ActivePlayers() {
		if p != viewer {
			opponents++
		}
	}
	label, pct, probs, ok := e.annotator.Annotate(hole, e.board, opponents)
	if !ok {
		state.HandStrengthLabel = preflopLabel(hole)
		return
	}
	state.HandStrengthLabel = label
	state.HandStrengthPct = &pct
	state.HandCategoryProbs = probs
}

func preflopLabel(hole []deck.Card) string {
	switch {
	case hole[0].Rank == hole[1].Rank:
		return "Pocket Pair"
	case hole[0].Suit == hole[1].Suit:
		return "Suited"
	default:
		return "High Card"
	}
}

// Observation is the view a policy decides from: the current actor's own
// cards plus everything public.
type Observation struct {
	Street        Street         `json:"street"`
	LegalActions  []ActionKind   `json:"legal_actions"`
	MinRaiseTo    int            `json:"min_raise_to"`
	MaxRaiseTo    int            `json:"max_raise_to"`
	ToCall        int            `json:"to_call"`
	Stacks        map[string]int `json:"stacks"`
	Bets          map[string]int `json:"bets"`
	CurrentPlayer string         `json:"current_player"`
	BigBlind      int            `json:"big_blind"`
	Pot           int            `json:"pot"`
	Board         []deck.Card    `json:"community_cards"`
	Hole          []deck.Card    `json:"hand"`
	History       []ActionRecord `json:"action_history"`
}

// Observation builds the policy input for the seat currently to act.
func (e *Engine) Observation() Observation {
	b := e.Betting
	actor := b.CurrentPlayer
	return Observation{
		Street:        e.street,
		LegalActions:  b.LegalActions(),
		MinRaiseTo:    b.MinRaiseTo(),
		MaxRaiseTo:    b.MaxRaiseTo(actor),
		ToCall:        b.ToCall(actor),
		Stacks:        maps.Clone(b.Stacks),
		Bets:          maps.Clone(b.Contributions),
		CurrentPlayer: actor,
		BigBlind:      b.BigBlind,
		Pot:           b.Pot,
		Board:         slices.Clone(e.board),
		Hole:          slices.Clone(e.holeCards[actor]),
		History:       slices.Clone(b.History),
	}
}

func tailHistory(history []ActionRecord, limit int) []ActionRecord {
	if len(history) <= limit {
		return slices.Clone(history)
	}
	return slices.Clone(history[len(history)-limit:])
}
