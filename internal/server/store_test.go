package server

import (
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtable/internal/evaluator"
	"github.com/lox/holdemtable/internal/game"
)

func testFactory() EngineFactory {
	return func() (*game.Engine, error) {
		return game.NewEngine([]string{"p1", "p2", "p3"}, evaluator.New(),
			game.WithBlinds(1, 2), game.WithChips(200), game.WithSeed(1))
	}
}

func TestCreateMultiplayerTable(t *testing.T) {
	store := NewStore(testFactory())
	session, err := store.CreateMultiplayerTable("host-key")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(session.ID, "TBL-"))
	assert.Len(t, session.ID, len("TBL-")+8)
	assert.Equal(t, ModeMulti, session.Mode)
	assert.Equal(t, "p1", session.HostSeat)
	assert.True(t, session.Joined["p1"], "host is seated on creation")
	assert.Equal(t, "host-key", session.SeatOwners["p1"])
	assert.False(t, session.Started)

	assert.Same(t, session, store.Get(session.ID))
}

func TestGetUnknownTable(t *testing.T) {
	store := NewStore(testFactory())
	assert.Nil(t, store.Get("TBL-DEADBEEF"))
}

func TestGetOrCreateSinglePlayer(t *testing.T) {
	store := NewStore(testFactory())

	session, created, err := store.GetOrCreate("my-session")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "my-session", session.ID)
	assert.Equal(t, ModeSingle, session.Mode)

	again, created, err := store.GetOrCreate("my-session")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, session, again)
}

func TestGetOrCreateGeneratesID(t *testing.T) {
	store := NewStore(testFactory())
	session, created, err := store.GetOrCreate("")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, session.ID, 32)
}

func TestJoinAssignsLowestFreeSeat(t *testing.T) {
	store := NewStore(testFactory())
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)

	seat, err := store.JoinMultiplayerTable(session.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "p2", seat)

	seat, err = store.JoinMultiplayerTable(session.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "p3", seat)
}

func TestJoinIsIdempotentPerUserKey(t *testing.T) {
	store := NewStore(testFactory())
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)

	seat, err := store.JoinMultiplayerTable(session.ID, "alice")
	require.NoError(t, err)
	again, err := store.JoinMultiplayerTable(session.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, seat, again)

	seat, err = store.JoinMultiplayerTable(session.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, "p1", seat, "the host's key maps back to the host seat")
}

func TestJoinFullTable(t *testing.T) {
	store := NewStore(testFactory())
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c", "d"} {
		_, err := store.JoinMultiplayerTable(session.ID, key)
		require.NoError(t, err)
	}
	_, err = store.JoinMultiplayerTable(session.ID, "e")
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestJoinErrors(t *testing.T) {
	store := NewStore(testFactory())
	_, err := store.JoinMultiplayerTable("TBL-MISSING1", "key")
	assert.ErrorIs(t, err, ErrTableNotFound)

	single, _, err := store.GetOrCreate("solo")
	require.NoError(t, err)
	_, err = store.JoinMultiplayerTable(single.ID, "key")
	assert.ErrorIs(t, err, ErrNotMultiplayer)

	multi, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)
	multi.TableEnded = true
	_, err = store.JoinMultiplayerTable(multi.ID, "key")
	assert.ErrorIs(t, err, ErrTableEnded)
}

func TestStartMultiplayerTableHostOnly(t *testing.T) {
	store := NewStore(testFactory())
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)
	_, err = store.JoinMultiplayerTable(session.ID, "alice")
	require.NoError(t, err)

	_, err = store.StartMultiplayerTable(session.ID, "p2")
	assert.ErrorIs(t, err, ErrNotHost)

	started, err := store.StartMultiplayerTable(session.ID, "p1")
	require.NoError(t, err)
	assert.True(t, started.Started)
	assert.Equal(t, 1, started.Engine.HandID())

	// Idempotent: a second start does not redeal.
	started, err = store.StartMultiplayerTable(session.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, started.Engine.HandID())
}

func TestStartErrors(t *testing.T) {
	store := NewStore(testFactory())
	_, err := store.StartMultiplayerTable("TBL-MISSING1", "p1")
	assert.ErrorIs(t, err, ErrTableNotFound)

	single, _, err := store.GetOrCreate("solo")
	require.NoError(t, err)
	_, err = store.StartMultiplayerTable(single.ID, "p1")
	assert.ErrorIs(t, err, ErrNotMultiplayer)

	multi, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)
	multi.TableEnded = true
	_, err = store.StartMultiplayerTable(multi.ID, "p1")
	assert.ErrorIs(t, err, ErrTableEnded)
}

func TestSessionsExpireAfterTTL(t *testing.T) {
	clock := quartz.NewMock(t)
	store := NewStore(testFactory(), WithClock(clock), WithTTL(time.Minute))

	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.NotNil(t, store.Get(session.ID), "access refreshes the TTL")

	clock.Advance(time.Minute + time.Second)
	assert.Nil(t, store.Get(session.ID))
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	clock := quartz.NewMock(t)
	store := NewStore(testFactory(), WithClock(clock), WithTTL(time.Minute))

	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		clock.Advance(45 * time.Second)
		store.Touch(session.ID)
	}
	assert.NotNil(t, store.Get(session.ID))
}

func TestHumanSeats(t *testing.T) {
	store := NewStore(testFactory())
	session, err := store.CreateMultiplayerTable("host")
	require.NoError(t, err)
	_, err = store.JoinMultiplayerTable(session.ID, "alice")
	require.NoError(t, err)

	session.Lock()
	defer session.Unlock()
	humans := session.HumanSeats()
	assert.True(t, humans["p1"])
	assert.True(t, humans["p2"], "joined multiplayer seats stay human while disconnected")
	assert.False(t, humans["p3"])
}
