package ai

import (
	"fmt"
	"strings"

	"github.com/lox/holdemtable/internal/deck"
	"github.com/lox/holdemtable/internal/game"
)

// Infoset abstraction: hands, boards and betting lines collapse into coarse
// buckets so a strategy table stays small enough to train and look up. The
// id format is
//
//	seat:STREET:holeBucket:boardBucket:bettingBucket:potBucket:stackBucket
//
// and must stay stable across versions or persisted strategies go stale.

var rankNames = map[deck.Rank]string{
	deck.Ace:   "A",
	deck.King:  "K",
	deck.Queen: "Q",
	deck.Jack:  "J",
	deck.Ten:   "T",
	deck.Nine:  "9",
	deck.Eight: "8",
}

// BucketHoleCards groups starting hands: pairs by rank, high-card combos by
// rank pair and suitedness, the rest into MID and LOW.
func BucketHoleCards(hole []deck.Card) string {
	if len(hole) != 2 {
		return "INVALID"
	}
	hi, lo := hole[0].Rank, hole[1].Rank
	if hi < lo {
		hi, lo = lo, hi
	}
	suited := hole[0].Suit == hole[1].Suit

	if hi == lo {
		name, ok := rankNames[hi]
		if !ok {
			name = fmt.Sprintf("%d", int(hi))
		}
		return "PP_" + name + name
	}

	prefix := "UNSUITED"
	if suited {
		prefix = "SUITED"
	}
	if hi >= deck.Eight {
		hiName, ok := rankNames[hi]
		if !ok {
			hiName = "LOW"
		}
		loName, ok := rankNames[lo]
		if !ok {
			loName = "LOW"
		}
		return prefix + "_" + hiName + loName
	}
	if hi >= deck.Six {
		return prefix + "_MID"
	}
	return prefix + "_LOW"
}

// BucketBoard classifies board texture: suit distribution, pairing, and on
// the flop whether the board is high or low.
func BucketBoard(board []deck.Card) string {
	if len(board) == 0 {
		return "PREFLOP"
	}

	suitCounts := make(map[deck.Suit]int)
	rankCounts := make(map[deck.Rank]int)
	highCards := 0
	for _, c := range board {
		suitCounts[c.Suit]++
		rankCounts[c.Rank]++
		if c.Rank >= deck.Ten {
			highCards++
		}
	}
	maxSuit := 0
	for _, n := range suitCounts {
		if n > maxSuit {
			maxSuit = n
		}
	}
	maxRank := 0
	for _, n := range rankCounts {
		if n > maxRank {
			maxRank = n
		}
	}

	switch len(board) {
	case 3:
		texture := "RAINBOW"
		if maxSuit == 3 {
			texture = "MONOTONE"
		} else if maxSuit == 2 {
			texture = "TWO_TONE"
		}
		if maxRank >= 2 {
			texture += "_PAIRED"
		}
		if highCards >= 2 {
			texture += "_HIGH"
		} else if highCards == 0 {
			texture += "_LOW"
		}
		return "FLOP_" + texture

	case 4:
		texture := "RAINBOW"
		if maxSuit >= 3 {
			texture = "FLUSH_DRAW"
		} else if maxSuit == 2 {
			texture = "TWO_TONE"
		}
		if maxRank >= 2 {
			texture += "_PAIRED"
		}
		return "TURN_" + texture

	case 5:
		texture := "RAINBOW"
		if maxSuit >= 5 {
			texture = "FLUSH"
		} else if maxSuit >= 4 {
			texture = "FLUSH_DRAW"
		}
		if maxRank >= 2 {
			texture += "_PAIRED"
		}
		return "RIVER_" + texture
	}
	return fmt.Sprintf("BOARD_%d", len(board))
}

// BucketBettingSequence compresses the recent betting line into a pattern of
// the last few action kinds.
func BucketBettingSequence(history []game.ActionRecord, street game.Street) string {
	prefix := strings.ToUpper(street.String())
	if len(history) == 0 {
		return prefix + "_NO_ACTION"
	}

	recent := history
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	kinds := make([]string, 0, 3)
	start := 0
	if len(recent) > 3 {
		start = len(recent) - 3
	}
	for _, record := range recent[start:] {
		kinds = append(kinds, record.Action.Kind.String())
	}
	return prefix + "_" + strings.Join(kinds, "_")
}

// BucketPotSize expresses the pot in big blinds, coarsely.
func BucketPotSize(pot, bigBlind int) string {
	if bigBlind == 0 {
		return "POT_UNKNOWN"
	}
	potBB := float64(pot) / float64(bigBlind)
	switch {
	case potBB < 5:
		return "POT_TINY"
	case potBB < 20:
		return "POT_SMALL"
	case potBB < 50:
		return "POT_MEDIUM"
	case potBB < 100:
		return "POT_LARGE"
	default:
		return "POT_HUGE"
	}
}

// BucketStackRatio expresses the actor's remaining stack in big blinds.
func BucketStackRatio(stack, bigBlind int) string {
	if bigBlind == 0 {
		return "STACK_UNKNOWN"
	}
	stackBB := float64(stack) / float64(bigBlind)
	switch {
	case stackBB > 100:
		return "STACK_DEEP"
	case stackBB > 50:
		return "STACK_MEDIUM"
	case stackBB > 20:
		return "STACK_SHALLOW"
	default:
		return "STACK_SHORT"
	}
}

// ComputeInfosetID combines all abstractions into a stable lookup key. An
// empty hole slice yields the abstract (card-blind) variant of the infoset.
func ComputeInfosetID(seat string, hole, board []deck.Card, street game.Street, history []game.ActionRecord, pot, stack, bigBlind int) string {
	holeBucket := "NO_HOLE"
	if len(hole) > 0 {
		holeBucket = BucketHoleCards(hole)
	}
	boardBucket := "NO_BOARD"
	if len(board) > 0 {
		boardBucket = BucketBoard(board)
	}
	parts := []string{
		seat,
		strings.ToUpper(street.String()),
		holeBucket,
		boardBucket,
		BucketBettingSequence(history, street),
		BucketPotSize(pot, bigBlind),
		BucketStackRatio(stack, bigBlind),
	}
	return strings.Join(parts, ":")
}
