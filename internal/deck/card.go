package deck

import (
	"encoding/json"
	"fmt"
)

// Suit is one of the four French suits, encoded as its lowercase letter.
type Suit byte

const (
	Spades   Suit = 's'
	Hearts   Suit = 'h'
	Diamonds Suit = 'd'
	Clubs    Suit = 'c'
)

// Suits lists all suits in deck-building order.
var Suits = [4]Suit{Spades, Hearts, Diamonds, Clubs}

func (s Suit) String() string {
	return string(byte(s))
}

// Rank is a card rank, 2 through 14 where 14 is the ace.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const rankChars = "23456789TJQKA"

func (r Rank) String() string {
	if r < Two || r > Ace {
		return "?"
	}
	return string(rankChars[r-Two])
}

// Card is a single playing card. The zero value is not a valid card.
type Card struct {
	Rank Rank
	Suit Suit
}

// String renders the card in compact textual form, e.g. "As" or "Td".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Parse decodes the compact textual form produced by String.
func Parse(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	var rank Rank
	for i := 0; i < len(rankChars); i++ {
		if rankChars[i] == s[0] {
			rank = Rank(i) + Two
			break
		}
	}
	if rank == 0 {
		return Card{}, fmt.Errorf("invalid card rank %q", s)
	}
	suit := Suit(s[1])
	switch suit {
	case Spades, Hearts, Diamonds, Clubs:
	default:
		return Card{}, fmt.Errorf("invalid card suit %q", s)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// MustParse is Parse for trusted literals; it panics on malformed input.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseAll decodes a slice of textual cards.
func ParseAll(ss []string) ([]Card, error) {
	cards := make([]Card, 0, len(ss))
	for _, s := range ss {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Strings renders a slice of cards as their textual forms.
func Strings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
