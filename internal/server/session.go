package server

import (
	"sync"
	"time"

	"github.com/lox/holdemtable/internal/game"
)

// Table modes.
const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// SeatOrder is the fixed seat naming for every table. Multiplayer seats are
// assigned in this order; single-player tables seat the human at p1.
var SeatOrder = []string{"p1", "p2", "p3", "p4", "p5"}

// Session is one table: its engine plus connection and lifecycle state. All
// fields after mu are guarded by it; a session is a cooperative
// single-threaded actor, so handlers lock it for the duration of a message
// including any AI turns the message triggers.
type Session struct {
	ID     string
	Engine *game.Engine

	mu sync.Mutex

	Mode     string
	HostSeat string
	Started  bool

	sockets    map[string]*Conn
	humanSeats map[string]bool
	Joined     map[string]bool
	SeatOwners map[string]string

	LastSeen  time.Time
	CreatedAt time.Time

	TableEnded           bool
	TableWinners         []string
	AwaitingHandContinue bool
}

// Lock serializes access to the session's mutable state.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// RegisterSocket attaches a connection for the given seat, replacing any
// previous one. Caller holds the session lock.
func (s *Session) RegisterSocket(seat string, conn *Conn) {
	s.sockets[seat] = conn
	s.humanSeats[seat] = true
}

// RemoveSocket detaches a seat's connection. Caller holds the session lock.
func (s *Session) RemoveSocket(seat string) {
	delete(s.sockets, seat)
	delete(s.humanSeats, seat)
}

// HumanSeats returns the seats a human currently controls: connected seats,
// plus every joined seat on multiplayer tables so a disconnected human's
// seat is never played for them. Caller holds the session lock.
func (s *Session) HumanSeats() map[string]bool {
	humans := make(map[string]bool, len(s.humanSeats)+len(s.Joined))
	for seat := range s.humanSeats {
		humans[seat] = true
	}
	if s.Mode == ModeMulti {
		for seat := range s.Joined {
			humans[seat] = true
		}
	}
	return humans
}
