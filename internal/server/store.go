package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/holdemtable/internal/game"
)

// DefaultTTL is how long an untouched session survives before eviction.
const DefaultTTL = 30 * time.Minute

// Store lifecycle errors, mapped to HTTP statuses and wire error codes by
// the callers.
var (
	ErrTableNotFound  = errors.New("table not found")
	ErrNotMultiplayer = errors.New("not a multiplayer table")
	ErrTableEnded     = errors.New("table has ended")
	ErrTableFull      = errors.New("table is full")
	ErrNotHost        = errors.New("only the host can start the table")
)

// EngineFactory builds a fresh engine for a new table.
type EngineFactory func() (*game.Engine, error)

// Store is the table registry: keyed sessions with TTL eviction on every
// access. The injected clock keeps eviction testable without sleeping.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    quartz.Clock
	newGame  EngineFactory
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides the session idle timeout.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces the wall clock, for tests.
func WithClock(clock quartz.Clock) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// NewStore creates a session store that builds engines via factory.
func NewStore(factory EngineFactory, opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      DefaultTTL,
		clock:    quartz.NewReal(),
		newGame:  factory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) generateTableID() string {
	for {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			panic("store: reading random bytes: " + err.Error())
		}
		candidate := "TBL-" + strings.ToUpper(hex.EncodeToString(buf))
		if _, exists := s.sessions[candidate]; !exists {
			return candidate
		}
	}
}

func (s *Store) createSession(id, mode string) (*Session, error) {
	engine, err := s.newGame()
	if err != nil {
		return nil, fmt.Errorf("creating table engine: %w", err)
	}
	now := s.clock.Now()
	session := &Session{
		ID:         id,
		Engine:     engine,
		Mode:       mode,
		HostSeat:   SeatOrder[0],
		sockets:    make(map[string]*Conn),
		humanSeats: make(map[string]bool),
		Joined:     make(map[string]bool),
		SeatOwners: make(map[string]string),
		LastSeen:   now,
		CreatedAt:  now,
	}
	if mode == ModeMulti {
		session.Joined[session.HostSeat] = true
	}
	s.sessions[id] = session
	return session, nil
}

// CreateMultiplayerTable allocates a TBL-prefixed table with the host at p1.
// A user key binds the host seat for idempotent rejoin.
func (s *Store) CreateMultiplayerTable(hostUserKey string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()

	session, err := s.createSession(s.generateTableID(), ModeMulti)
	if err != nil {
		return nil, err
	}
	if hostUserKey != "" {
		session.SeatOwners[session.HostSeat] = hostUserKey
	}
	return session, nil
}

// Get returns a live session and refreshes its TTL, or nil.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	session := s.sessions[id]
	if session != nil {
		session.LastSeen = s.clock.Now()
	}
	return session
}

// GetOrCreate fetches a session or creates a single-player one under the
// given id (a random id when empty). The second result reports creation.
func (s *Store) GetOrCreate(id string) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()

	if id != "" {
		if session, ok := s.sessions[id]; ok {
			session.LastSeen = s.clock.Now()
			return session, false, nil
		}
	}
	if id == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return nil, false, fmt.Errorf("generating session id: %w", err)
		}
		id = hex.EncodeToString(buf)
	}
	session, err := s.createSession(id, ModeSingle)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// JoinMultiplayerTable assigns the lowest free seat, or returns the seat a
// user key already owns so reconnects are idempotent.
func (s *Store) JoinMultiplayerTable(id, userKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()

	session := s.sessions[id]
	if session == nil {
		return "", ErrTableNotFound
	}
	if session.Mode != ModeMulti {
		return "", ErrNotMultiplayer
	}
	if session.TableEnded {
		return "", ErrTableEnded
	}
	session.LastSeen = s.clock.Now()

	if userKey != "" {
		for seat, owner := range session.SeatOwners {
			if owner == userKey {
				return seat, nil
			}
		}
	}
	for _, seat := range SeatOrder {
		if session.Joined[seat] {
			continue
		}
		session.Joined[seat] = true
		if userKey != "" {
			session.SeatOwners[seat] = userKey
		}
		return seat, nil
	}
	return "", ErrTableFull
}

// StartMultiplayerTable deals the first hand. Host-only, idempotent.
func (s *Store) StartMultiplayerTable(id, requesterSeat string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()

	session := s.sessions[id]
	if session == nil {
		return nil, ErrTableNotFound
	}
	if session.Mode != ModeMulti {
		return nil, ErrNotMultiplayer
	}
	if session.TableEnded {
		return nil, ErrTableEnded
	}
	if requesterSeat != session.HostSeat {
		return nil, ErrNotHost
	}
	session.LastSeen = s.clock.Now()

	if !session.Started {
		if err := session.Engine.StartHand(); err != nil {
			return nil, err
		}
		session.Started = true
	}
	return session, nil
}

// Touch refreshes a session's TTL.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	if session := s.sessions[id]; session != nil {
		session.LastSeen = s.clock.Now()
	}
}

// evictExpired drops sessions idle past the TTL. Caller holds s.mu.
func (s *Store) evictExpired() {
	now := s.clock.Now()
	for id, session := range s.sessions {
		if now.Sub(session.LastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
