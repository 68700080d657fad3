package training

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtable/internal/evaluator"
	"github.com/lox/holdemtable/internal/game"
	"github.com/lox/holdemtable/internal/randutil"
)

func exp(n int) Experience {
	return Experience{
		Timestamp:   float64(n),
		SessionID:   "sess",
		Street:      "preflop",
		PlayerToAct: fmt.Sprintf("p%d", n%5+1),
		InfosetID:   fmt.Sprintf("infoset-%d", n),
		ActionTaken: "call",
	}
}

func TestNewBufferRejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewBuffer(0, randutil.New(1))
	assert.Error(t, err)
	_, err = NewBuffer(-1, randutil.New(1))
	assert.Error(t, err)
}

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	b, err := NewBuffer(3, randutil.New(1))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		b.Add(exp(i))
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Capacity())

	// Oldest two evicted; sampling everything yields records 2..4.
	samples, err := b.Sample(3)
	require.NoError(t, err)
	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.InfosetID
	}
	assert.ElementsMatch(t, []string{"infoset-2", "infoset-3", "infoset-4"}, ids)
}

func TestSampleWithoutReplacement(t *testing.T) {
	b, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b.Add(exp(i))
	}

	samples, err := b.Sample(6)
	require.NoError(t, err)
	require.Len(t, samples, 6)
	seen := make(map[string]bool)
	for _, s := range samples {
		assert.False(t, seen[s.InfosetID], "duplicate %s", s.InfosetID)
		seen[s.InfosetID] = true
	}
}

func TestSampleClampsToSize(t *testing.T) {
	b, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)
	b.Add(exp(0))

	samples, err := b.Sample(5)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	_, err = b.Sample(0)
	assert.Error(t, err)
}

func TestSampleEmptyBuffer(t *testing.T) {
	b, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)
	samples, err := b.Sample(3)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		b.Add(exp(i))
	}

	path := filepath.Join(t.TempDir(), "replay.jsonl")
	require.NoError(t, b.Save(path))

	loaded, err := Load(path, 10, randutil.New(2))
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())

	samples, err := loaded.Sample(4)
	require.NoError(t, err)
	streets := make(map[string]bool)
	for _, s := range samples {
		assert.Equal(t, "sess", s.SessionID)
		streets[s.Street] = true
	}
	assert.True(t, streets["preflop"])
}

func TestLoadZeroCapacitySizesToFile(t *testing.T) {
	b, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		b.Add(exp(i))
	}
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	require.NoError(t, b.Save(path))

	loaded, err := Load(path, 0, randutil.New(1))
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Capacity())
	assert.Equal(t, 6, loaded.Len())
}

func TestLoadKeepsNewestWhenOverCapacity(t *testing.T) {
	b, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		b.Add(exp(i))
	}
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	require.NoError(t, b.Save(path))

	loaded, err := Load(path, 2, randutil.New(1))
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	samples, err := loaded.Sample(2)
	require.NoError(t, err)
	ids := []string{samples[0].InfosetID, samples[1].InfosetID}
	assert.ElementsMatch(t, []string{"infoset-4", "infoset-5"}, ids)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"), 10, randutil.New(1))
	assert.Error(t, err)
}

func TestRecordCapturesPreActionInfoset(t *testing.T) {
	e, err := game.NewEngine([]string{"p1", "p2"}, evaluator.New(),
		game.WithBlinds(5, 10), game.WithChips(1000), game.WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, e.StartHand())

	buffer, err := NewBuffer(10, randutil.New(1))
	require.NoError(t, err)

	action := game.Action{Kind: game.Call}
	street := e.Street()
	require.NoError(t, e.Step(action, "p1"))
	Record(buffer, "sess-1", "p1", action, street, e)

	require.Equal(t, 1, buffer.Len())
	samples, err := buffer.Sample(1)
	require.NoError(t, err)
	rec := samples[0]
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "p1", rec.PlayerToAct)
	assert.Equal(t, "preflop", rec.Street)
	assert.Equal(t, "call", rec.ActionTaken)
	assert.True(t, strings.HasPrefix(rec.InfosetID, "p1:PREFLOP:"), rec.InfosetID)
	assert.Contains(t, rec.InfosetID, ":PREFLOP_NO_ACTION:", "history excludes the recorded action")
	assert.Nil(t, rec.Outcome)
	assert.NotZero(t, rec.Timestamp)
}

func TestRecordNilBufferIsNoOp(t *testing.T) {
	Record(nil, "sess", "p1", game.Action{Kind: game.Check}, game.Preflop, nil)
}
