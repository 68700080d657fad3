package game

import (
	"errors"
	"fmt"
)

// ErrInvalidAction marks rule violations that callers report to the client
// and then carry on from. Wrapped errors carry the specific reason.
var ErrInvalidAction = errors.New("invalid action")

// StepResult reports what a single betting step concluded.
type StepResult struct {
	RoundComplete bool
	HandOver      bool
	Winner        string
}

// BettingState is the per-hand betting state machine: blinds, contributions,
// legal actions, raise validation, round completion and payout. Street
// progression and dealing live in Engine; BettingState only sees the seats
// contesting the current hand.
type BettingState struct {
	Players       []string
	SmallBlind    int
	BigBlind      int
	StartingStack int

	Stacks        map[string]int
	Contributions map[string]int
	Pot           int
	CurrentBet    int
	LastRaiseSize int
	CurrentPlayer string

	Pending map[string]bool
	Folded  map[string]bool
	AllIn   map[string]bool

	History  []ActionRecord
	HandOver bool
	Winners  []string
}

// NewBettingState builds a betting state for a table with the given stakes.
// Stacks persist across hands; seats not seen before are topped up to the
// starting stack on StartHand.
func NewBettingState(smallBlind, bigBlind, startingStack int) *BettingState {
	return &BettingState{
		SmallBlind:    smallBlind,
		BigBlind:      bigBlind,
		StartingStack: startingStack,
		Stacks:        make(map[string]int),
	}
}

// StartHand resets per-hand state, posts blinds and sets the first actor.
// A blind capped by a short stack puts that seat all-in immediately.
func (b *BettingState) StartHand(players []string, sbSeat, bbSeat, firstToAct string) {
	b.Players = append([]string(nil), players...)
	if b.Stacks == nil {
		b.Stacks = make(map[string]int)
	}
	for seat, chips := range b.Stacks {
		if chips < 0 {
			b.Stacks[seat] = 0
		}
	}
	for _, seat := range b.Players {
		if _, ok := b.Stacks[seat]; !ok {
			b.Stacks[seat] = b.StartingStack
		}
	}

	b.Contributions = make(map[string]int, len(b.Stacks))
	for seat := range b.Stacks {
		b.Contributions[seat] = 0
	}
	b.Pot = 0
	b.CurrentBet = 0
	b.LastRaiseSize = b.BigBlind
	b.History = nil
	b.HandOver = false
	b.Winners = nil
	b.Folded = make(map[string]bool)
	b.AllIn = make(map[string]bool)
	b.Pending = make(map[string]bool)

	if len(b.Players) < 2 {
		b.HandOver = true
		if len(b.Players) == 1 {
			b.Winners = []string{b.Players[0]}
		}
		b.CurrentPlayer = ""
		return
	}

	b.postBlind(sbSeat, b.SmallBlind)
	b.postBlind(bbSeat, b.BigBlind)
	for _, seat := range b.Players {
		if b.Contributions[seat] > b.CurrentBet {
			b.CurrentBet = b.Contributions[seat]
		}
		if b.Stacks[seat] == 0 {
			b.AllIn[seat] = true
		}
	}
	for _, seat := range b.ActivePlayers() {
		if !b.AllIn[seat] {
			b.Pending[seat] = true
		}
	}
	b.CurrentPlayer = firstToAct
	if b.AllIn[firstToAct] {
		b.CurrentPlayer = b.nextPlayer(firstToAct)
	}
}

// StartNewRound resets street-scoped fields for the next betting round.
func (b *BettingState) StartNewRound(firstToAct string) {
	for _, seat := range b.Players {
		b.Contributions[seat] = 0
	}
	b.CurrentBet = 0
	b.LastRaiseSize = b.BigBlind
	b.Pending = make(map[string]bool)
	for _, seat := range b.ActivePlayers() {
		if !b.AllIn[seat] {
			b.Pending[seat] = true
		}
	}
	b.CurrentPlayer = firstToAct
}

// LegalActions lists what the current actor may do. Empty when the hand is
// over or no seat is to act.
func (b *BettingState) LegalActions() []ActionKind {
	if b.HandOver || b.CurrentPlayer == "" {
		return nil
	}
	seat := b.CurrentPlayer
	toCall := b.ToCall(seat)
	stack := b.Stacks[seat]

	actions := []ActionKind{Fold}
	if toCall == 0 {
		actions = append(actions, Check)
	} else if stack > 0 {
		actions = append(actions, Call)
	}
	if stack > toCall && b.Contributions[seat]+stack > b.CurrentBet {
		actions = append(actions, Raise)
	}
	return actions
}

// ToCall is the amount the seat must add to match the current bet.
func (b *BettingState) ToCall(seat string) int {
	owed := b.CurrentBet - b.Contributions[seat]
	if owed < 0 {
		return 0
	}
	return owed
}

// MinRaiseTo is the smallest total contribution a raise may target.
func (b *BettingState) MinRaiseTo() int {
	if b.CurrentBet == 0 {
		return b.LastRaiseSize
	}
	return b.CurrentBet + b.LastRaiseSize
}

// MaxRaiseTo is the largest total contribution the seat can put in.
func (b *BettingState) MaxRaiseTo(seat string) int {
	return b.Contributions[seat] + b.Stacks[seat]
}

// ActivePlayers returns the seats still contesting the hand, in seat order.
func (b *BettingState) ActivePlayers() []string {
	active := make([]string, 0, len(b.Players))
	for _, seat := range b.Players {
		if !b.Folded[seat] {
			active = append(active, seat)
		}
	}
	return active
}

// Step applies one action for the given seat. Rule violations return an
// error wrapping ErrInvalidAction and leave the state untouched.
func (b *BettingState) Step(action Action, seat string) (StepResult, error) {
	if b.HandOver {
		return StepResult{}, fmt.Errorf("%w: hand is over", ErrInvalidAction)
	}
	if seat != b.CurrentPlayer {
		return StepResult{}, fmt.Errorf("%w: not %s's turn", ErrInvalidAction, seat)
	}
	if b.Folded[seat] {
		return StepResult{}, fmt.Errorf("%w: %s has already folded", ErrInvalidAction, seat)
	}

	toCall := b.ToCall(seat)
	roundComplete := false

	switch action.Kind {
	case Fold:
		b.record(seat, action)
		b.Folded[seat] = true
		delete(b.Pending, seat)
		if active := b.ActivePlayers(); len(active) == 1 {
			b.HandOver = true
			b.Winners = []string{active[0]}
			b.CurrentPlayer = ""
			return StepResult{HandOver: true, Winner: active[0]}, nil
		}
		roundComplete = len(b.Pending) == 0

	case Check:
		if toCall != 0 {
			return StepResult{}, fmt.Errorf("%w: cannot check facing a bet of %d", ErrInvalidAction, toCall)
		}
		b.record(seat, action)
		delete(b.Pending, seat)
		roundComplete = len(b.Pending) == 0

	case Call:
		if toCall == 0 {
			return StepResult{}, fmt.Errorf("%w: cannot call when there is no bet", ErrInvalidAction)
		}
		b.record(seat, action)
		call := toCall
		if b.Stacks[seat] < call {
			call = b.Stacks[seat]
		}
		b.commit(seat, call)
		if b.Stacks[seat] == 0 {
			b.AllIn[seat] = true
		}
		delete(b.Pending, seat)
		roundComplete = len(b.Pending) == 0

	case Raise:
		if err := b.applyRaise(seat, action.Amount); err != nil {
			return StepResult{}, err
		}
		b.record(seat, action)

	default:
		return StepResult{}, fmt.Errorf("%w: unsupported action", ErrInvalidAction)
	}

	if !b.HandOver && !roundComplete {
		b.CurrentPlayer = b.nextPlayer(seat)
		if b.CurrentPlayer == "" {
			roundComplete = true
		}
	} else if roundComplete {
		b.CurrentPlayer = ""
	}

	return StepResult{RoundComplete: roundComplete, HandOver: b.HandOver}, nil
}

// applyRaise validates and commits a raise to the given total contribution.
// A raise below the minimum is legal only when it consumes the actor's whole
// stack, and such a short all-in does not move LastRaiseSize: betting is not
// reopened for seats that already matched the previous bet.
func (b *BettingState) applyRaise(seat string, raiseTo int) error {
	if raiseTo <= b.CurrentBet {
		return fmt.Errorf("%w: raise to %d does not increase the bet of %d", ErrInvalidAction, raiseTo, b.CurrentBet)
	}
	required := raiseTo - b.Contributions[seat]
	if required > b.Stacks[seat] {
		return fmt.Errorf("%w: raise to %d exceeds stack", ErrInvalidAction, raiseTo)
	}
	allInShort := required == b.Stacks[seat] && raiseTo < b.MinRaiseTo()
	if raiseTo < b.MinRaiseTo() && !allInShort {
		return fmt.Errorf("%w: raise to %d below minimum of %d", ErrInvalidAction, raiseTo, b.MinRaiseTo())
	}

	if !allInShort {
		b.LastRaiseSize = raiseTo - b.CurrentBet
	}
	b.CurrentBet = raiseTo
	b.commit(seat, required)
	if b.Stacks[seat] == 0 {
		b.AllIn[seat] = true
	}
	b.Pending = make(map[string]bool)
	for _, other := range b.ActivePlayers() {
		if other != seat && !b.AllIn[other] {
			b.Pending[other] = true
		}
	}
	return nil
}

// Payout splits the pot among winners: integer floor share each, remainder
// chips to remainderTo (defaulting to the first winner). Terminal.
func (b *BettingState) Payout(winners []string, remainderTo string) {
	if len(winners) == 0 {
		winners = b.ActivePlayers()
	}
	share := b.Pot / len(winners)
	remainder := b.Pot % len(winners)
	for _, seat := range winners {
		b.Stacks[seat] += share
	}
	if remainder > 0 {
		recipient := remainderTo
		if recipient == "" {
			recipient = winners[0]
		}
		found := false
		for _, seat := range winners {
			if seat == recipient {
				found = true
				break
			}
		}
		if !found {
			recipient = winners[0]
		}
		b.Stacks[recipient] += remainder
	}
	b.Pot = 0
	b.HandOver = true
	b.Winners = append([]string(nil), winners...)
	b.CurrentPlayer = ""
}

// AwardPots credits per-seat winnings computed by the caller, for showdowns
// where all-in seats at different commitment levels split the pot into side
// pots. The amounts must sum to Pot. Terminal, like Payout.
func (b *BettingState) AwardPots(awards map[string]int, winners []string) {
	for seat, amount := range awards {
		b.Stacks[seat] += amount
	}
	b.Pot = 0
	b.HandOver = true
	b.Winners = append([]string(nil), winners...)
	b.CurrentPlayer = ""
}

// nextPlayer finds the next pending seat clockwise from the given one, or ""
// when the round is complete.
func (b *BettingState) nextPlayer(from string) string {
	start := b.seatIndex(from)
	if start < 0 {
		return ""
	}
	for offset := 1; offset <= len(b.Players); offset++ {
		candidate := b.Players[(start+offset)%len(b.Players)]
		if b.Folded[candidate] || b.AllIn[candidate] {
			continue
		}
		if b.Pending[candidate] {
			return candidate
		}
	}
	return ""
}

func (b *BettingState) seatIndex(seat string) int {
	for i, s := range b.Players {
		if s == seat {
			return i
		}
	}
	return -1
}

func (b *BettingState) postBlind(seat string, amount int) {
	if amount > b.Stacks[seat] {
		amount = b.Stacks[seat]
	}
	b.Stacks[seat] -= amount
	b.Contributions[seat] += amount
	b.Pot += amount
}

func (b *BettingState) commit(seat string, amount int) {
	b.Stacks[seat] -= amount
	b.Contributions[seat] += amount
	b.Pot += amount
}

func (b *BettingState) record(seat string, action Action) {
	b.History = append(b.History, ActionRecord{Seat: seat, Action: action})
}
