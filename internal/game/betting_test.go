package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadsUp(t *testing.T) *BettingState {
	t.Helper()
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")
	return b
}

func chipTotal(b *BettingState) int {
	total := b.Pot
	for _, chips := range b.Stacks {
		total += chips
	}
	return total
}

func TestStartHandPostsBlinds(t *testing.T) {
	b := newHeadsUp(t)

	assert.Equal(t, 995, b.Stacks["p1"])
	assert.Equal(t, 990, b.Stacks["p2"])
	assert.Equal(t, 5, b.Contributions["p1"])
	assert.Equal(t, 10, b.Contributions["p2"])
	assert.Equal(t, 15, b.Pot)
	assert.Equal(t, 10, b.CurrentBet)
	assert.Equal(t, "p1", b.CurrentPlayer)
	assert.Equal(t, 5, b.ToCall("p1"))
	assert.Equal(t, 0, b.ToCall("p2"))
}

func TestStartHandShortBlindIsAllIn(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.Stacks["p2"] = 6
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")

	assert.Equal(t, 6, b.Contributions["p2"])
	assert.Equal(t, 0, b.Stacks["p2"])
	assert.True(t, b.AllIn["p2"])
	assert.Equal(t, 10, b.CurrentBet, "short blind does not lower the bet to match")
	assert.False(t, b.Pending["p2"])
}

func TestStartHandSinglePlayerEndsImmediately(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1"}, "p1", "p1", "p1")

	assert.True(t, b.HandOver)
	assert.Equal(t, []string{"p1"}, b.Winners)
	assert.Empty(t, b.CurrentPlayer)
}

func TestLegalActionsFacingBet(t *testing.T) {
	b := newHeadsUp(t)
	assert.Equal(t, []ActionKind{Fold, Call, Raise}, b.LegalActions())
}

func TestLegalActionsNoBet(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(Action{Kind: Call}, "p1")
	require.NoError(t, err)

	// Big blind's option: facing no additional bet.
	assert.Equal(t, "p2", b.CurrentPlayer)
	assert.Equal(t, []ActionKind{Fold, Check, Raise}, b.LegalActions())
}

func TestLegalActionsEmptyWhenHandOver(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(Action{Kind: Fold}, "p1")
	require.NoError(t, err)
	assert.Empty(t, b.LegalActions())
}

func TestStepRejectsOutOfTurn(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(Action{Kind: Call}, "p2")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, "p1", b.CurrentPlayer)
	assert.Equal(t, 15, b.Pot)
}

func TestStepRejectsCheckFacingBet(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(Action{Kind: Check}, "p1")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestStepRejectsCallWithNoBet(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(Action{Kind: Call}, "p1")
	require.NoError(t, err)
	_, err = b.Step(Action{Kind: Call}, "p2")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRaiseBelowMinimumRejected(t *testing.T) {
	b := newHeadsUp(t)

	assert.Equal(t, 20, b.MinRaiseTo())
	before := b.Pot
	_, err := b.Step(RaiseTo(15), "p1")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, before, b.Pot)
	assert.Equal(t, "p1", b.CurrentPlayer)
}

func TestRaiseAboveStackRejected(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(RaiseTo(2000), "p1")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, 995, b.Stacks["p1"])
}

func TestRaiseNotIncreasingBetRejected(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(RaiseTo(10), "p1")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRaiseMovesMinimumForReraise(t *testing.T) {
	b := newHeadsUp(t)

	_, err := b.Step(RaiseTo(30), "p1")
	require.NoError(t, err)
	assert.Equal(t, 30, b.CurrentBet)
	assert.Equal(t, 20, b.LastRaiseSize)
	assert.Equal(t, 50, b.MinRaiseTo())
	assert.Equal(t, "p2", b.CurrentPlayer)
	assert.Equal(t, 20, b.ToCall("p2"))
}

func TestShortAllInRaiseDoesNotReopenMinimum(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.Stacks["p1"] = 18
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")

	// 18 total is below the minimum raise of 20 but consumes the stack.
	_, err := b.Step(RaiseTo(18), "p1")
	require.NoError(t, err)
	assert.True(t, b.AllIn["p1"])
	assert.Equal(t, 18, b.CurrentBet)
	assert.Equal(t, 10, b.LastRaiseSize)
	assert.Equal(t, 28, b.MinRaiseTo())
}

func TestShortNonAllInRaiseRejected(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.Stacks["p1"] = 100
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")

	_, err := b.Step(RaiseTo(18), "p1")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestCallShortStackGoesAllIn(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")

	_, err := b.Step(RaiseTo(1000), "p1")
	require.NoError(t, err)

	b.Stacks["p2"] = 400
	res, err := b.Step(Action{Kind: Call}, "p2")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
	assert.True(t, b.AllIn["p2"])
	assert.Equal(t, 0, b.Stacks["p2"])
	assert.Equal(t, 410, b.Contributions["p2"])
}

func TestFoldToLastPlayerEndsHand(t *testing.T) {
	b := newHeadsUp(t)

	res, err := b.Step(Action{Kind: Fold}, "p1")
	require.NoError(t, err)
	assert.True(t, res.HandOver)
	assert.Equal(t, "p2", res.Winner)
	assert.True(t, b.HandOver)
	assert.Equal(t, []string{"p2"}, b.Winners)
	assert.Empty(t, b.CurrentPlayer)
}

func TestFoldWithPlayersRemainingContinues(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1", "p2", "p3"}, "p2", "p3", "p1")

	res, err := b.Step(Action{Kind: Fold}, "p1")
	require.NoError(t, err)
	assert.False(t, res.HandOver)
	assert.Equal(t, "p2", b.CurrentPlayer)
	assert.Equal(t, []string{"p2", "p3"}, b.ActivePlayers())
}

func TestCheckdownCompletesRound(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(Action{Kind: Call}, "p1")
	require.NoError(t, err)
	res, err := b.Step(Action{Kind: Check}, "p2")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
	assert.Empty(t, b.CurrentPlayer)
	assert.Equal(t, 20, b.Pot)
}

func TestStartNewRoundResetsStreetState(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(RaiseTo(30), "p1")
	require.NoError(t, err)
	_, err = b.Step(Action{Kind: Call}, "p2")
	require.NoError(t, err)

	b.StartNewRound("p2")
	assert.Equal(t, 0, b.CurrentBet)
	assert.Equal(t, 10, b.LastRaiseSize)
	assert.Equal(t, 0, b.Contributions["p1"])
	assert.Equal(t, 0, b.Contributions["p2"])
	assert.Equal(t, "p2", b.CurrentPlayer)
	assert.Equal(t, 60, b.Pot, "pot carries across rounds")
}

func TestPayoutSingleWinner(t *testing.T) {
	b := newHeadsUp(t)
	b.Payout([]string{"p2"}, "p1")

	assert.Equal(t, 1005, b.Stacks["p2"])
	assert.Equal(t, 0, b.Pot)
	assert.True(t, b.HandOver)
	assert.Equal(t, []string{"p2"}, b.Winners)
}

func TestPayoutSplitsRemainderToDesignatedSeat(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")
	b.Stacks["p1"] = 990
	b.Stacks["p2"] = 989
	b.Pot = 21

	b.Payout([]string{"p1", "p2"}, "p1")
	assert.Equal(t, 990+11, b.Stacks["p1"])
	assert.Equal(t, 989+10, b.Stacks["p2"])
	assert.Equal(t, 0, b.Pot)
}

func TestPayoutRemainderFallsBackToFirstWinner(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1", "p2"}, "p1", "p2", "p1")
	b.Pot = 21

	b.Payout([]string{"p1", "p2"}, "p3")
	assert.Equal(t, 1006, b.Stacks["p1"], "remainder goes to the first winner when the designee is not among them")
}

func TestAwardPotsCreditsExactAmounts(t *testing.T) {
	b := newHeadsUp(t)
	b.Pot = 250
	b.Stacks["p1"] = 900
	b.Stacks["p2"] = 850

	b.AwardPots(map[string]int{"p1": 150, "p2": 100}, []string{"p1", "p2"})
	assert.Equal(t, 1050, b.Stacks["p1"])
	assert.Equal(t, 950, b.Stacks["p2"])
	assert.Equal(t, 0, b.Pot)
	assert.True(t, b.HandOver)
	assert.Equal(t, []string{"p1", "p2"}, b.Winners)
}

func TestChipsConservedThroughBetting(t *testing.T) {
	b := NewBettingState(5, 10, 1000)
	b.StartHand([]string{"p1", "p2", "p3"}, "p2", "p3", "p1")
	total := chipTotal(b)

	steps := []struct {
		seat   string
		action Action
	}{
		{"p1", RaiseTo(30)},
		{"p2", Action{Kind: Call}},
		{"p3", Action{Kind: Fold}},
	}
	for _, s := range steps {
		_, err := b.Step(s.action, s.seat)
		require.NoError(t, err)
		assert.Equal(t, total, chipTotal(b), "after %s by %s", s.action, s.seat)
	}

	b.Payout([]string{"p1"}, "p1")
	assert.Equal(t, total, chipTotal(b))
}

func TestHistoryRecordsActionsInOrder(t *testing.T) {
	b := newHeadsUp(t)
	_, err := b.Step(RaiseTo(30), "p1")
	require.NoError(t, err)
	_, err = b.Step(Action{Kind: Call}, "p2")
	require.NoError(t, err)

	require.Len(t, b.History, 2)
	assert.Equal(t, ActionRecord{Seat: "p1", Action: RaiseTo(30)}, b.History[0])
	assert.Equal(t, ActionRecord{Seat: "p2", Action: Action{Kind: Call}}, b.History[1])
}
