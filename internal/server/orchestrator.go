package server

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdemtable/internal/ai"
	"github.com/lox/holdemtable/internal/game"
	"github.com/lox/holdemtable/internal/protocol"
	"github.com/lox/holdemtable/internal/training"
)

// Orchestrator drives a table between human moves: it applies validated
// client actions, runs AI seats until the next actor is human or the hand
// ends, and broadcasts events and per-viewer state to every connected seat.
//
// All game-state access happens with the session lock held, so each session
// behaves as a single-threaded actor even with five concurrent readers.
type Orchestrator struct {
	store  *Store
	policy ai.Policy
	buffer *training.Buffer
	clock  quartz.Clock
	logger *log.Logger
	cfg    Config
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorClock replaces the pacing clock, for tests.
func WithOrchestratorClock(clock quartz.Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = clock }
}

// NewOrchestrator wires the turn loop around a store and a policy. buffer
// may be nil to disable experience capture.
func NewOrchestrator(store *Store, policy ai.Policy, buffer *training.Buffer, cfg Config, logger *log.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		policy: policy,
		buffer: buffer,
		clock:  quartz.NewReal(),
		logger: logger.WithPrefix("orchestrator"),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) trace(sessionID, msg string, kv ...any) {
	if !o.cfg.GameTrace {
		return
	}
	o.logger.Debug(msg, append([]any{"session_id", sessionID}, kv...)...)
}

func (o *Orchestrator) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := o.clock.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}

// HandleConnection owns one seat's read loop: it registers the socket,
// deals the first hand of fresh single-player sessions, and dispatches
// messages until the client disconnects.
func (o *Orchestrator) HandleConnection(session *Session, seat string, conn *Conn, created bool) {
	session.Lock()
	session.RegisterSocket(seat, conn)

	if session.Mode == ModeSingle && (created || !session.Started) {
		if err := session.Engine.StartHand(); err != nil {
			o.logger.Error("failed to start hand", "session_id", session.ID, "err", err)
		} else {
			session.Started = true
			o.trace(session.ID, "new hand",
				"button", session.Engine.Button(),
				"current", session.Engine.Betting.CurrentPlayer)
		}
	}

	o.broadcastUpdate(session)
	o.runAITurns(session)
	session.Unlock()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			o.logger.Info("client disconnected", "session_id", session.ID, "seat", seat)
			session.Lock()
			session.RemoveSocket(seat)
			session.Unlock()
			_ = conn.Close()
			return
		}
		o.handleMessage(session, seat, conn, data)
	}
}

func (o *Orchestrator) handleMessage(session *Session, seat string, conn *Conn, data []byte) {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		var parseErr *protocol.ParseError
		if errors.As(err, &parseErr) {
			_ = conn.Send(protocol.ErrorFrom(parseErr))
		}
		return
	}

	o.store.Touch(session.ID)

	session.Lock()
	defer session.Unlock()

	if session.Mode == ModeMulti && session.TableEnded {
		_ = conn.Send(protocol.ErrorMessage(protocol.CodeTableEnded,
			"This table has ended", "Create a new table to continue playing"))
		return
	}

	switch msg.Type {
	case protocol.TypeContinue:
		o.handleContinue(session, seat, conn)
	case protocol.TypeMove:
		o.handleMove(session, seat, conn, msg.Action)
	}
}

func (o *Orchestrator) handleContinue(session *Session, seat string, conn *Conn) {
	if !session.Engine.Betting.HandOver {
		_ = conn.Send(protocol.ErrorMessage(protocol.CodeHandNotOver,
			"Cannot continue yet", "The current hand is still in progress"))
		return
	}
	if !session.AwaitingHandContinue {
		_ = conn.Send(protocol.ErrorMessage(protocol.CodeHandContinueNotReady,
			"Hand is not waiting for continue"))
		return
	}
	o.trace(session.ID, "hand continue", "seat", seat)
	o.advanceToNextHand(session)
	o.runAITurns(session)
}

func (o *Orchestrator) advanceToNextHand(session *Session) {
	session.AwaitingHandContinue = false
	o.pause(o.cfg.HandEndPause)
	if err := session.Engine.StartNextHand(); err != nil {
		o.logger.Error("failed to start next hand", "session_id", session.ID, "err", err)
		return
	}
	o.trace(session.ID, "next hand started",
		"button", session.Engine.Button(),
		"current", session.Engine.Betting.CurrentPlayer)
	o.broadcastNewHand(session)
	o.broadcastEvents(session, session.Engine.DrainEvents())
	o.broadcastState(session)
}

func (o *Orchestrator) handleMove(session *Session, seat string, conn *Conn, action game.Action) {
	acting := session.Engine.Betting.CurrentPlayer
	if acting == "" {
		// No actor between hands: defaulting to p1 means p1's stray MOVE
		// reaches the engine and fails as INVALID_ACTION while every other
		// seat gets NOT_YOUR_TURN.
		acting = SeatOrder[0]
	}
	if acting != seat {
		_ = conn.Send(protocol.ErrorMessage(protocol.CodeNotYourTurn,
			"Not your turn", "Current player is "+acting))
		return
	}

	o.trace(session.ID, "human move", "seat", seat, "action", action.String(), "street", session.Engine.Street().String())
	street := session.Engine.Street()
	if err := session.Engine.Step(action, seat); err != nil {
		_ = conn.Send(protocol.ErrorMessage(protocol.CodeInvalidAction,
			"Invalid action", err.Error()))
		return
	}
	handEnded := session.Engine.Betting.HandOver
	training.Record(o.buffer, session.ID, seat, action, street, session.Engine)

	o.broadcastUpdate(session)
	if !handEnded {
		o.pause(o.cfg.TurnDelay)
	}
	o.runAITurns(session)
}

// runAITurns steps machine seats until the next actor is human, the hand
// ends, or the per-hand action cap trips. It also repairs stuck states: a
// current actor who can no longer act, or a street with no eligible actor.
// Caller holds the session lock.
func (o *Orchestrator) runAITurns(session *Session) {
	if session.Mode == ModeMulti && session.TableEnded {
		return
	}
	engine := session.Engine

	maxActions := max(10, len(engine.Players())*4)
	taken := 0
	for !engine.Betting.HandOver && taken < maxActions {
		if o.advanceWithoutActor(session) {
			ended := engine.Betting.HandOver
			o.broadcastUpdate(session)
			if !ended {
				o.pause(o.cfg.TurnDelay)
			}
			continue
		}

		actor := engine.Betting.CurrentPlayer
		if actor == "" {
			break
		}
		if session.HumanSeats()[actor] {
			break
		}

		street := engine.Street()
		action, err := o.policy.Decide(engine.Observation())
		if err != nil {
			o.logger.Warn("policy decision failed", "session_id", session.ID, "seat", actor, "err", err)
			fallback, ok := fallbackAction(engine)
			if !ok {
				break
			}
			action = fallback
		}

		o.trace(session.ID, "ai move", "seat", actor, "action", action.String(), "street", street.String())
		if err := engine.Step(action, actor); err != nil {
			o.logger.Warn("ai action rejected", "session_id", session.ID, "seat", actor, "action", action.String(), "err", err)
			fallback, ok := fallbackAction(engine)
			if !ok {
				break
			}
			street = engine.Street()
			if err := engine.Step(fallback, actor); err != nil {
				o.trace(session.ID, "ai fallback rejected", "seat", actor, "action", fallback.String())
				break
			}
			action = fallback
		}

		ended := engine.Betting.HandOver
		training.Record(o.buffer, session.ID, actor, action, street, engine)
		o.broadcastUpdate(session)
		taken++
		if !ended {
			o.pause(o.cfg.TurnDelay)
		}
	}
}

// fallbackAction is the deterministic substitute when a policy fails:
// check, else call, else fold, else minimum raise.
func fallbackAction(engine *game.Engine) (game.Action, bool) {
	legal := engine.Betting.LegalActions()
	has := make(map[game.ActionKind]bool, len(legal))
	for _, kind := range legal {
		has[kind] = true
	}
	for _, kind := range []game.ActionKind{game.Check, game.Call, game.Fold, game.Raise} {
		if !has[kind] {
			continue
		}
		if kind == game.Raise {
			return game.RaiseTo(engine.Betting.MinRaiseTo()), true
		}
		return game.Action{Kind: kind}, true
	}
	return game.Action{}, false
}

// advanceWithoutActor repairs states where no seat can act. BettingState
// maintains its own turn invariant, so the repair branch is a safety net;
// the common case here is the all-in runout.
func (o *Orchestrator) advanceWithoutActor(session *Session) bool {
	engine := session.Engine
	b := engine.Betting

	if current := b.CurrentPlayer; current != "" {
		if !b.Folded[current] && !b.AllIn[current] {
			return false
		}
		// Current actor cannot act: hand the turn to the next pending seat.
		for _, seat := range b.Players {
			if b.Pending[seat] && !b.Folded[seat] && !b.AllIn[seat] {
				o.trace(session.ID, "turn repaired", "previous", current, "next", seat)
				b.CurrentPlayer = seat
				return true
			}
		}
	}
	if b.CurrentPlayer != "" {
		return false
	}

	// No eligible actor: run the board out to showdown.
	o.trace(session.ID, "auto progress", "street", engine.Street().String())
	engine.AdvanceWithoutActor()
	return true
}

// broadcastUpdate flushes queued events and fresh state to every seat, and
// at hand end audits chips, arms the continue gate, and ends the table when
// at most one seat still has chips.
func (o *Orchestrator) broadcastUpdate(session *Session) {
	engine := session.Engine

	var funded []string
	tableShouldEnd := false
	if engine.Betting.HandOver {
		funded = engine.FundedSeats()
		tableShouldEnd = session.Mode == ModeMulti && len(funded) <= 1
		if !tableShouldEnd && !session.AwaitingHandContinue {
			session.AwaitingHandContinue = true
			o.trace(session.ID, "hand waiting for continue")
		}
	}

	o.broadcastEvents(session, engine.DrainEvents())
	o.broadcastState(session)

	if !engine.Betting.HandOver {
		return
	}
	o.auditChips(session)
	if !tableShouldEnd {
		return
	}

	session.AwaitingHandContinue = false
	if !session.TableEnded {
		session.TableEnded = true
		session.TableWinners = funded
		o.trace(session.ID, "table end", "winners", funded)
		o.broadcastEvents(session, []game.Event{{
			Event: game.EventTableEnd,
			Data: map[string]any{
				"winners": funded,
				"stacks":  engine.Betting.Stacks,
			},
		}})
	}
	o.broadcastState(session)
}

func (o *Orchestrator) broadcastEvents(session *Session, events []game.Event) {
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		o.trace(session.ID, "event", "name", string(event.Event))
	}
	for seat, conn := range session.sockets {
		for _, event := range events {
			if err := conn.Send(protocol.EventMessage(event)); err != nil {
				o.dropSocket(session, seat)
				break
			}
		}
	}
}

func (o *Orchestrator) broadcastState(session *Session) {
	for seat, conn := range session.sockets {
		state := session.Engine.PublicState(seat, session.ID)
		state.AwaitingHandContinue = session.AwaitingHandContinue
		if err := conn.Send(protocol.StateMessage(state)); err != nil {
			o.dropSocket(session, seat)
		}
	}
}

func (o *Orchestrator) broadcastNewHand(session *Session) {
	engine := session.Engine
	for seat, conn := range session.sockets {
		event := game.Event{
			Event: game.EventNewHand,
			Data: map[string]any{
				"player_hand":        engine.HoleCards(seat),
				"button":             engine.Button(),
				"small_blind_player": engine.SmallBlindSeat(),
				"big_blind_player":   engine.BigBlindSeat(),
				"current_player":     engine.Betting.CurrentPlayer,
			},
		}
		if err := conn.Send(protocol.EventMessage(event)); err != nil {
			o.dropSocket(session, seat)
		}
	}
}

func (o *Orchestrator) dropSocket(session *Session, seat string) {
	o.trace(session.ID, "drop socket", "seat", seat, "reason", "send failed")
	session.RemoveSocket(seat)
}

// auditChips verifies chip conservation at hand end. A mismatch is logged
// and the hand stands; the invariant is a safety net, not a transaction
// log.
func (o *Orchestrator) auditChips(session *Session) {
	b := session.Engine.Betting
	total := b.Pot
	for _, chips := range b.Stacks {
		total += chips
	}
	expected := b.StartingStack * len(b.Stacks)
	if total != expected {
		o.logger.Warn("chip audit mismatch",
			"session_id", session.ID, "total", total, "expected", expected)
		return
	}
	o.trace(session.ID, "chip audit ok", "total", total)
}
