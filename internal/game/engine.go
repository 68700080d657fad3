package game

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/lox/holdemtable/internal/deck"
	"github.com/lox/holdemtable/internal/randutil"
)

const (
	MinSeats = 2
	MaxSeats = 5

	DefaultSmallBlind    = 1
	DefaultBigBlind      = 2
	DefaultStartingStack = 200
)

// Evaluator scores a showdown hand. Lower scores beat higher ones.
type Evaluator interface {
	Score(hole, board []deck.Card) int32
	Category(score int32) string
}

// Engine runs the hand lifecycle for a single table: dealing, street
// transitions, showdown resolution, and stack bookkeeping across hands.
// Betting mechanics within a street are delegated to BettingState.
type Engine struct {
	players   []string
	eval      Evaluator
	rng       *rand.Rand
	annotator Annotator

	Betting *BettingState

	handID       int
	button       int
	sbSeat       string
	bbSeat       string
	street       Street
	board        []deck.Card
	holeCards    map[string][]deck.Card
	handComplete bool
	handStacks   map[string]int

	deck        *deck.Deck
	stackedDeck []deck.Card

	showdownScores map[string]int32
	revealed       map[string][]deck.Card

	pendingEvents []Event
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithChips sets the starting stack for every seat.
func WithChips(chips int) Option {
	return func(e *Engine) { e.Betting.StartingStack = chips }
}

// WithBlinds sets the small and big blind amounts.
func WithBlinds(small, big int) Option {
	return func(e *Engine) {
		e.Betting.SmallBlind = small
		e.Betting.BigBlind = big
	}
}

// WithDeck fixes the deal order for every hand. Used by tests to set up
// exact board and hole card scenarios.
func WithDeck(cards []deck.Card) Option {
	return func(e *Engine) { e.stackedDeck = cards }
}

// WithRand replaces the shuffling source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSeed seeds the default shuffling source.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = randutil.New(seed) }
}

// NewEngine creates an engine for the given seats. Seat order is table
// order; the button starts on the first seat and rotates clockwise.
func NewEngine(players []string, eval Evaluator, opts ...Option) (*Engine, error) {
	if len(players) < MinSeats || len(players) > MaxSeats {
		return nil, fmt.Errorf("player count %d outside %d..%d", len(players), MinSeats, MaxSeats)
	}
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if seen[p] {
			return nil, fmt.Errorf("duplicate seat %q", p)
		}
		seen[p] = true
	}

	e := &Engine{
		players: slices.Clone(players),
		eval:    eval,
		rng:     randutil.New(rand.Int64()),
		Betting: NewBettingState(DefaultSmallBlind, DefaultBigBlind, DefaultStartingStack),
		street:  Preflop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Players returns the table seating order.
func (e *Engine) Players() []string { return slices.Clone(e.players) }

// HandID returns the current hand number, starting at 1.
func (e *Engine) HandID() int { return e.handID }

// Street returns the current street.
func (e *Engine) Street() Street { return e.street }

// Board returns the community cards dealt so far.
func (e *Engine) Board() []deck.Card { return slices.Clone(e.board) }

// HoleCards returns a seat's hole cards, or nil if the seat was not dealt in.
func (e *Engine) HoleCards(seat string) []deck.Card {
	return slices.Clone(e.holeCards[seat])
}

// HandComplete reports whether the current hand has finished.
func (e *Engine) HandComplete() bool { return e.handComplete }

// Button returns the seat currently holding the button.
func (e *Engine) Button() string { return e.players[e.button] }

// SmallBlindSeat returns the seat that posted the small blind this hand.
func (e *Engine) SmallBlindSeat() string { return e.sbSeat }

// BigBlindSeat returns the seat that posted the big blind this hand.
func (e *Engine) BigBlindSeat() string { return e.bbSeat }

// FundedSeats returns seats with chips remaining, in table order.
func (e *Engine) FundedSeats() []string {
	var funded []string
	for _, p := range e.players {
		if e.Betting.Stacks[p] > 0 {
			funded = append(funded, p)
		}
	}
	return funded
}

// Utility returns a seat's net chip change over the current hand.
func (e *Engine) Utility(seat string) int {
	start, ok := e.handStacks[seat]
	if !ok {
		return 0
	}
	return e.Betting.Stacks[seat] - start
}

// StartHand deals the first hand of the table without rotating the button.
func (e *Engine) StartHand() error {
	return e.startHand(false)
}

// StartNextHand rotates the button to the next funded seat and deals a new
// hand among the seats that still have chips.
func (e *Engine) StartNextHand() error {
	return e.startHand(true)
}

func (e *Engine) startHand(rotate bool) error {
	eligible := e.FundedSeats()
	if e.handID == 0 {
		// First hand: everyone is staked lazily by StartHand.
		eligible = slices.Clone(e.players)
	}
	if len(eligible) < 2 {
		return fmt.Errorf("need at least 2 funded seats, have %d", len(eligible))
	}

	if rotate {
		e.button = (e.button + 1) % len(e.players)
	}
	// Snap the button onto an eligible seat; busted seats are skipped.
	e.button = e.seatIndex(e.nextEligibleFrom(e.button, eligible))

	var sb, bb, first string
	btnSeat := e.players[e.button]
	btnPos := slices.Index(eligible, btnSeat)
	if len(eligible) == 2 {
		// Heads-up: button posts the small blind and acts first preflop.
		sb = btnSeat
		bb = eligible[(btnPos+1)%2]
		first = sb
	} else {
		sb = eligible[(btnPos+1)%len(eligible)]
		bb = eligible[(btnPos+2)%len(eligible)]
		first = eligible[(btnPos+3)%len(eligible)]
	}

	if len(e.stackedDeck) > 0 {
		e.deck = deck.Stacked(e.stackedDeck)
	} else {
		e.deck = deck.New()
		e.deck.Shuffle(e.rng)
	}

	e.handID++
	e.sbSeat = sb
	e.bbSeat = bb
	e.street = Preflop
	e.board = nil
	e.handComplete = false
	e.showdownScores = nil
	e.revealed = nil

	e.holeCards = make(map[string][]deck.Card, len(eligible))
	for _, p := range eligible {
		e.holeCards[p] = e.deck.Deal(2)
	}

	e.Betting.StartHand(eligible, sb, bb, first)

	e.handStacks = make(map[string]int, len(e.players))
	for _, p := range e.players {
		e.handStacks[p] = e.Betting.Stacks[p] + e.Betting.Contributions[p]
	}

	e.queueEvent(EventDealHole, map[string]any{"street": e.street.String(), "cards": []string{}})

	// Blinds can put everyone all-in before anyone acts.
	if e.Betting.CurrentPlayer == "" && !e.Betting.HandOver {
		e.runOut()
	}
	return nil
}

func (e *Engine) nextEligibleFrom(start int, eligible []string) string {
	for i := 0; i < len(e.players); i++ {
		candidate := e.players[(start+i)%len(e.players)]
		if slices.Contains(eligible, candidate) {
			return candidate
		}
	}
	return eligible[0]
}

func (e *Engine) seatIndex(seat string) int {
	return slices.Index(e.players, seat)
}

// Step applies an action for the seat currently to act and advances the
// hand: completing betting rounds, dealing streets, and resolving fold
// wins or showdowns as they occur.
func (e *Engine) Step(action Action, seat string) error {
	if e.handComplete {
		return fmt.Errorf("%w: hand is complete", ErrInvalidAction)
	}
	res, err := e.Betting.Step(action, seat)
	if err != nil {
		return err
	}

	if res.HandOver {
		e.endHandByFold(res.Winner)
		return nil
	}
	if res.RoundComplete {
		e.advanceStreet()
	}
	return nil
}

// AdvanceWithoutActor forces the hand forward when no seat can act:
// everyone remaining is all-in, or a round completed without a next
// player. It deals out remaining streets and resolves the showdown.
func (e *Engine) AdvanceWithoutActor() {
	if e.handComplete || e.Betting.CurrentPlayer != "" {
		return
	}
	e.runOut()
}

func (e *Engine) advanceStreet() {
	if e.street == River {
		e.resolveShowdown()
		return
	}

	// If at most one remaining player can still bet, betting is over for
	// the hand: run the board out to the river and show down.
	if e.actionablePlayers() < 2 {
		e.runOut()
		return
	}

	e.dealNextStreet()
	e.Betting.StartNewRound(e.firstToActPostflop())
	if e.Betting.CurrentPlayer == "" {
		e.advanceStreet()
	}
}

func (e *Engine) actionablePlayers() int {
	n := 0
	for _, p := range e.Betting.ActivePlayers() {
		if !e.Betting.AllIn[p] {
			n++
		}
	}
	return n
}

func (e *Engine) runOut() {
	for e.street != River {
		e.dealNextStreet()
	}
	e.resolveShowdown()
}

func (e *Engine) dealNextStreet() {
	var dealt []deck.Card
	switch e.street {
	case Preflop:
		e.street = Flop
		dealt = e.deck.Deal(3)
		e.board = append(e.board, dealt...)
		e.queueEvent(EventDealFlop, map[string]any{"street": e.street.String(), "cards": deck.Strings(dealt)})
	case Flop:
		e.street = Turn
		dealt = e.deck.Deal(1)
		e.board = append(e.board, dealt...)
		e.queueEvent(EventDealTurn, map[string]any{"street": e.street.String(), "cards": deck.Strings(dealt)})
	case Turn:
		e.street = River
		dealt = e.deck.Deal(1)
		e.board = append(e.board, dealt...)
		e.queueEvent(EventDealRiver, map[string]any{"street": e.street.String(), "cards": deck.Strings(dealt)})
	}
}

// firstToActPostflop returns the first active, non-all-in seat clockwise
// from the button, or "" if no such seat exists.
func (e *Engine) firstToActPostflop() string {
	for i := 1; i <= len(e.players); i++ {
		seat := e.players[(e.button+i)%len(e.players)]
		if _, dealt := e.holeCards[seat]; !dealt {
			continue
		}
		if !e.Betting.Folded[seat] && !e.Betting.AllIn[seat] && e.Betting.Stacks[seat] > 0 {
			return seat
		}
	}
	return ""
}

func (e *Engine) endHandByFold(winner string) {
	potTotal := e.Betting.Pot
	e.Betting.Payout([]string{winner}, e.players[e.button])
	e.handComplete = true
	e.street = Showdown
	e.queueEvent(EventHandEnd, map[string]any{
		"winner":        winner,
		"hand_category": nil,
		"pot":           potTotal,
	})
}

func (e *Engine) resolveShowdown() {
	e.street = Showdown

	contenders := e.Betting.ActivePlayers()
	e.showdownScores = make(map[string]int32, len(contenders))
	e.revealed = make(map[string][]deck.Card, len(contenders))
	for _, p := range contenders {
		e.showdownScores[p] = e.eval.Score(e.holeCards[p], e.board)
		e.revealed[p] = slices.Clone(e.holeCards[p])
	}

	potTotal := e.Betting.Pot
	winners := e.distributePot(contenders)
	e.handComplete = true

	best := e.showdownScores[winners[0]]
	for _, w := range winners[1:] {
		if e.showdownScores[w] < best {
			best = e.showdownScores[w]
		}
	}
	var winnerField any = winners[0]
	if len(winners) > 1 {
		winnerField = winners
	}
	e.queueEvent(EventHandEnd, map[string]any{
		"winner":        winnerField,
		"hand_category": e.eval.Category(best),
		"pot":           potTotal,
	})
}

// distributePot pays the showdown. When every contender committed the same
// amount there is a single pot: the best score takes it, ties split it.
// Otherwise the pot partitions into side pots at each distinct all-in
// commitment level, and each partition goes to the best hand among the
// contenders who contributed at that level.
func (e *Engine) distributePot(contenders []string) []string {
	totals := make(map[string]int, len(e.handStacks))
	for seat, start := range e.handStacks {
		totals[seat] = start - e.Betting.Stacks[seat]
	}

	levels := contributionLevels(contenders, totals)
	if len(levels) == 1 {
		winners := e.bestHands(contenders)
		e.Betting.Payout(winners, e.remainderSeat(winners))
		return winners
	}

	awards := make(map[string]int)
	winnerSet := make(map[string]bool)
	remaining := e.Betting.Pot
	prev := 0
	for i, level := range levels {
		pot := 0
		for _, total := range totals {
			pot += min(total, level) - min(total, prev)
		}
		if i == len(levels)-1 {
			// Chips committed beyond the deepest contender level, such
			// as a folded seat's overcontribution, stay in the top pot.
			pot = remaining
		}
		remaining -= pot
		prev = level

		var eligible []string
		for _, p := range contenders {
			if totals[p] >= level {
				eligible = append(eligible, p)
			}
		}
		winners := e.bestHands(eligible)
		share := pot / len(winners)
		remainder := pot % len(winners)
		for _, w := range winners {
			awards[w] += share
			winnerSet[w] = true
		}
		if remainder > 0 {
			awards[e.remainderSeat(winners)] += remainder
		}
	}

	var winners []string
	for _, p := range e.players {
		if winnerSet[p] {
			winners = append(winners, p)
		}
	}
	e.Betting.AwardPots(awards, winners)
	return winners
}

// bestHands returns the seats holding the lowest (best) score among the
// given contenders, in table order.
func (e *Engine) bestHands(contenders []string) []string {
	var winners []string
	best := int32(0)
	for _, p := range contenders {
		score := e.showdownScores[p]
		switch {
		case winners == nil || score < best:
			best = score
			winners = []string{p}
		case score == best:
			winners = append(winners, p)
		}
	}
	return winners
}

// contributionLevels returns the distinct per-hand commitment totals of the
// contenders, ascending.
func contributionLevels(contenders []string, totals map[string]int) []int {
	var levels []int
	for _, p := range contenders {
		if totals[p] > 0 && !slices.Contains(levels, totals[p]) {
			levels = append(levels, totals[p])
		}
	}
	slices.Sort(levels)
	if len(levels) == 0 {
		levels = []int{0}
	}
	return levels
}

// remainderSeat picks who receives the odd chip in a split pot: the button
// when it is among the winners, otherwise the first winner in table order.
func (e *Engine) remainderSeat(winners []string) string {
	button := e.players[e.button]
	if slices.Contains(winners, button) {
		return button
	}
	return winners[0]
}

// RevealedHands returns the hole cards shown at the last showdown, keyed
// by seat. Empty outside of a completed showdown.
func (e *Engine) RevealedHands() map[string][]deck.Card {
	out := make(map[string][]deck.Card, len(e.revealed))
	for seat, cards := range e.revealed {
		out[seat] = slices.Clone(cards)
	}
	return out
}

// ShowdownCategory returns the evaluator's category name for a seat's
// showdown hand, or "" if the seat did not reach showdown.
func (e *Engine) ShowdownCategory(seat string) string {
	score, ok := e.showdownScores[seat]
	if !ok {
		return ""
	}
	return e.eval.Category(score)
}
