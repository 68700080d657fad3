package deck

import rand "math/rand/v2"

// Deck is an ordered sequence of cards dealt from the top.
type Deck struct {
	cards []Card
}

// New returns a full 52-card deck in canonical order.
func New() *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	for rank := Two; rank <= Ace; rank++ {
		for _, suit := range Suits {
			d.cards = append(d.cards, Card{Rank: rank, Suit: suit})
		}
	}
	return d
}

// Stacked returns a deck that deals the given cards in order. Used by tests
// to rig specific hole cards and boards.
func Stacked(cards []Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// Shuffle permutes the deck using the provided RNG.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Deal removes and returns the top n cards. It panics if the deck is short,
// which can only happen on a programming error: a 52-card deck covers any
// five-seat hand with room to spare.
func (d *Deck) Deal(n int) []Card {
	if n > len(d.cards) {
		panic("deck: not enough cards to deal")
	}
	dealt := make([]Card, n)
	copy(dealt, d.cards[:n])
	d.cards = d.cards[n:]
	return dealt
}

// Remaining reports how many cards are left.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Cards returns a copy of the undealt cards in deal order.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Clone returns an independent copy of the deck.
func (d *Deck) Clone() *Deck {
	c := &Deck{cards: make([]Card, len(d.cards))}
	copy(c.cards, d.cards)
	return c
}
