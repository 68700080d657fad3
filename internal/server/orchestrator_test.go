package server

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtable/internal/ai"
	"github.com/lox/holdemtable/internal/deck"
	"github.com/lox/holdemtable/internal/evaluator"
	"github.com/lox/holdemtable/internal/game"
)

// fastConfig removes pacing so tests run the turn loop at full speed.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.TurnDelay = 0
	cfg.HandEndPause = 0
	cfg.GameTrace = false
	return cfg
}

func newTestOrchestrator(t *testing.T, factory EngineFactory) (*Orchestrator, *Store) {
	t.Helper()
	store := NewStore(factory)
	o := NewOrchestrator(store, ai.NewPassivePolicy(), nil, fastConfig(), log.New(io.Discard))
	return o, store
}

func headsUpFactory(t *testing.T, cards ...string) EngineFactory {
	t.Helper()
	stacked, err := deck.ParseAll(cards)
	require.NoError(t, err)
	return func() (*game.Engine, error) {
		return game.NewEngine([]string{"p1", "p2"}, evaluator.New(),
			game.WithBlinds(5, 10), game.WithChips(100), game.WithDeck(stacked))
	}
}

func TestRunAITurnsStopsAtHumanSeat(t *testing.T) {
	o, store := newTestOrchestrator(t, testFactory())
	session, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	require.NoError(t, session.Engine.StartHand())
	session.humanSeats["p2"] = true

	o.runAITurns(session)

	assert.Equal(t, "p2", session.Engine.Betting.CurrentPlayer)
	assert.False(t, session.Engine.HandComplete())
}

func TestRunAITurnsPlaysHandToShowdown(t *testing.T) {
	o, store := newTestOrchestrator(t, testFactory())
	session, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	require.NoError(t, session.Engine.StartHand())

	o.runAITurns(session)

	assert.True(t, session.Engine.HandComplete(), "passive seats check and call to showdown")
	assert.True(t, session.AwaitingHandContinue)
	assert.NotEmpty(t, session.Engine.Betting.Winners)
}

func TestRunAITurnsSkipsEndedTable(t *testing.T) {
	o, store := newTestOrchestrator(t, testFactory())
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)
	_, err = store.StartMultiplayerTable(session.ID, "p1")
	require.NoError(t, err)
	session.TableEnded = true

	before := session.Engine.Betting.CurrentPlayer
	o.runAITurns(session)
	assert.Equal(t, before, session.Engine.Betting.CurrentPlayer)
}

func TestFallbackActionPreference(t *testing.T) {
	e, err := game.NewEngine([]string{"p1", "p2"}, evaluator.New(),
		game.WithBlinds(5, 10), game.WithChips(1000), game.WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, e.StartHand())

	// Facing the blind: call beats fold.
	action, ok := fallbackAction(e)
	require.True(t, ok)
	assert.Equal(t, game.Call, action.Kind)

	require.NoError(t, e.Step(action, "p1"))
	action, ok = fallbackAction(e)
	require.True(t, ok)
	assert.Equal(t, game.Check, action.Kind)
}

func TestAdvanceWithoutActorRepairsStuckTurn(t *testing.T) {
	o, store := newTestOrchestrator(t, testFactory())
	session, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	require.NoError(t, session.Engine.StartHand())

	// Force an inconsistent turn pointer: the current actor has folded but
	// another seat is still pending.
	b := session.Engine.Betting
	current := b.CurrentPlayer
	b.Folded[current] = true
	delete(b.Pending, current)

	require.True(t, o.advanceWithoutActor(session))
	next := b.CurrentPlayer
	assert.NotEqual(t, current, next)
	assert.True(t, b.Pending[next])
}

func TestAdvanceWithoutActorNoOpWhileActorValid(t *testing.T) {
	o, store := newTestOrchestrator(t, testFactory())
	session, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	require.NoError(t, session.Engine.StartHand())

	assert.False(t, o.advanceWithoutActor(session))
}

func TestBroadcastUpdateEndsTableWhenOneSeatFunded(t *testing.T) {
	o, store := newTestOrchestrator(t, headsUpFactory(t,
		"As", "Ah", "Ks", "Kh", "2c", "7d", "9h", "Jc", "Qd"))
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)
	_, err = store.StartMultiplayerTable(session.ID, "p1")
	require.NoError(t, err)

	engine := session.Engine
	require.NoError(t, engine.Step(game.RaiseTo(100), "p1"))
	require.NoError(t, engine.Step(game.Action{Kind: game.Call}, "p2"))
	require.True(t, engine.HandComplete())
	require.Len(t, engine.FundedSeats(), 1)

	o.broadcastUpdate(session)

	assert.True(t, session.TableEnded)
	assert.Equal(t, []string{"p1"}, session.TableWinners)
	assert.False(t, session.AwaitingHandContinue)
}

func TestSinglePlayerHandEndWaitsForContinue(t *testing.T) {
	o, store := newTestOrchestrator(t, headsUpFactory(t,
		"As", "Ah", "Ks", "Kh", "2c", "7d", "9h", "Jc", "Qd"))
	session, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	require.NoError(t, session.Engine.StartHand())

	require.NoError(t, session.Engine.Step(game.Action{Kind: game.Fold}, "p1"))
	o.broadcastUpdate(session)
	assert.True(t, session.AwaitingHandContinue, "single-player tables never end, they wait")
	assert.False(t, session.TableEnded)

	o.advanceToNextHand(session)
	assert.False(t, session.AwaitingHandContinue)
	assert.Equal(t, 2, session.Engine.HandID())
	assert.False(t, session.Engine.HandComplete())
}
