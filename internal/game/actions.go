package game

import (
	"encoding/json"
	"fmt"
)

// Street is one betting round; Showdown is terminal.
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

var streetNames = [...]string{"preflop", "flop", "turn", "river", "showdown"}

func (s Street) String() string {
	if s < Preflop || s > Showdown {
		return "unknown"
	}
	return streetNames[s]
}

// ParseStreet decodes the lowercase street name.
func ParseStreet(name string) (Street, error) {
	for i, n := range streetNames {
		if n == name {
			return Street(i), nil
		}
	}
	return Preflop, fmt.Errorf("unknown street %q", name)
}

// BoardSize returns the number of community cards dealt by this street.
func (s Street) BoardSize() int {
	switch s {
	case Preflop:
		return 0
	case Flop:
		return 3
	case Turn:
		return 4
	default:
		return 5
	}
}

func (s Street) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Street) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStreet(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ActionKind is a player's move type.
type ActionKind int

const (
	Fold ActionKind = iota
	Check
	Call
	Raise
)

var actionNames = [...]string{"fold", "check", "call", "raise"}

func (a ActionKind) String() string {
	if a < Fold || a > Raise {
		return "unknown"
	}
	return actionNames[a]
}

// ParseActionKind decodes the lowercase action name.
func ParseActionKind(name string) (ActionKind, error) {
	for i, n := range actionNames {
		if n == name {
			return ActionKind(i), nil
		}
	}
	return Fold, fmt.Errorf("unknown action %q", name)
}

func (a ActionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *ActionKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseActionKind(name)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Action is a submitted move. Amount is the raise target: the total
// contribution the street's bet moves to, not the increment. It is zero for
// everything but raises.
type Action struct {
	Kind   ActionKind `json:"action"`
	Amount int        `json:"amount,omitempty"`
}

// RaiseTo builds a raise action targeting the given total contribution.
func RaiseTo(amount int) Action {
	return Action{Kind: Raise, Amount: amount}
}

func (a Action) String() string {
	if a.Kind == Raise {
		return fmt.Sprintf("raise(%d)", a.Amount)
	}
	return a.Kind.String()
}

// ActionRecord is one entry of the per-hand action history, in submission
// order.
type ActionRecord struct {
	Seat   string `json:"player_id"`
	Action Action `json:"action"`
}
