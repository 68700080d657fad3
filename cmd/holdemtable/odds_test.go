package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtable/internal/deck"
)

func TestParseCardRun(t *testing.T) {
	cards, err := parseCardRun("AsKd")
	require.NoError(t, err)
	assert.Equal(t, []deck.Card{deck.MustParse("As"), deck.MustParse("Kd")}, cards)

	board, err := parseCardRun("Td7s8h")
	require.NoError(t, err)
	assert.Len(t, board, 3)
}

func TestParseCardRunRejectsMalformed(t *testing.T) {
	_, err := parseCardRun("AsK")
	assert.Error(t, err)

	_, err = parseCardRun("AsXx")
	assert.Error(t, err)
}

func TestRejectDuplicates(t *testing.T) {
	hole, err := parseCardRun("AsKd")
	require.NoError(t, err)
	board, err := parseCardRun("Td7s8h")
	require.NoError(t, err)
	assert.NoError(t, rejectDuplicates(hole, board))

	overlap, err := parseCardRun("As7s")
	require.NoError(t, err)
	assert.Error(t, rejectDuplicates(hole, overlap))
}
