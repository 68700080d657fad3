// Package protocol defines the JSON messages exchanged with clients and
// their validation. Incoming messages are a tagged union on the "type"
// field; validation errors carry the code a handler should report.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/lox/holdemtable/internal/game"
)

// Client message types.
const (
	TypeMove     = "MOVE"
	TypeContinue = "CONTINUE"
)

// Server message types.
const (
	TypeState = "STATE"
	TypeEvent = "EVENT"
	TypeError = "ERROR"
)

// Error codes reported to clients.
const (
	CodeMissingTableID         = "MISSING_TABLE_ID"
	CodeTableNotFound          = "TABLE_NOT_FOUND"
	CodeInvalidTableMode       = "INVALID_TABLE_MODE"
	CodeInvalidSingleSessionID = "INVALID_SINGLE_SESSION_ID"
	CodeInvalidPlayerID        = "INVALID_PLAYER_ID"
	CodeSeatNotJoined          = "SEAT_NOT_JOINED"
	CodeTableNotStarted        = "TABLE_NOT_STARTED"
	CodeTableEnded             = "TABLE_ENDED"
	CodeHandNotOver            = "HAND_NOT_OVER"
	CodeHandContinueNotReady   = "HAND_CONTINUE_NOT_READY"
	CodeNotYourTurn            = "NOT_YOUR_TURN"
	CodeInvalidAction          = "INVALID_ACTION"
	CodeInvalidJSON            = "INVALID_JSON"
	CodeValidationError        = "VALIDATION_ERROR"
)

// ParseError is a client-message rejection with the error code to report.
type ParseError struct {
	Code    string
	Message string
	Details []string
}

func (e *ParseError) Error() string { return e.Message }

func invalidJSON(err error) *ParseError {
	return &ParseError{Code: CodeInvalidJSON, Message: "invalid JSON", Details: []string{err.Error()}}
}

func validationError(format string, args ...any) *ParseError {
	return &ParseError{Code: CodeValidationError, Message: fmt.Sprintf(format, args...)}
}

// ClientMessage is a parsed client request: a MOVE carrying an action, or a
// CONTINUE asking for the next hand.
type ClientMessage struct {
	Type   string
	Action game.Action
}

type rawClientMessage struct {
	Type   string          `json:"type"`
	Val    string          `json:"val"`
	Amount json.RawMessage `json:"amount"`
}

// ParseClientMessage decodes and validates one inbound frame. Errors are
// always *ParseError, distinguishing malformed JSON from schema violations.
// "deal" is accepted as a legacy alias for "call".
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClientMessage{}, invalidJSON(err)
	}

	switch raw.Type {
	case TypeContinue:
		return ClientMessage{Type: TypeContinue}, nil

	case TypeMove:
		val := raw.Val
		if val == "deal" {
			val = "call"
		}
		kind, err := game.ParseActionKind(val)
		if err != nil {
			return ClientMessage{}, validationError("unknown move %q", raw.Val)
		}
		action := game.Action{Kind: kind}
		if kind == game.Raise {
			if len(raw.Amount) == 0 {
				return ClientMessage{}, validationError("raise requires an amount")
			}
			var amount int
			if err := json.Unmarshal(raw.Amount, &amount); err != nil {
				return ClientMessage{}, validationError("amount must be an integer")
			}
			if amount < 1 {
				return ClientMessage{}, validationError("amount must be at least 1")
			}
			action.Amount = amount
		} else if len(raw.Amount) != 0 {
			var amount int
			if err := json.Unmarshal(raw.Amount, &amount); err != nil {
				return ClientMessage{}, validationError("amount must be an integer")
			}
		}
		return ClientMessage{Type: TypeMove, Action: action}, nil

	case "":
		return ClientMessage{}, validationError("missing message type")
	default:
		return ClientMessage{}, validationError("unknown message type %q", raw.Type)
	}
}

// ServerMessage is one outbound frame.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ErrorPayload is the payload of an ERROR frame.
type ErrorPayload struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// StateMessage wraps a per-viewer projection.
func StateMessage(state game.PublicState) ServerMessage {
	return ServerMessage{Type: TypeState, Payload: state}
}

// EventMessage wraps a queued engine event.
func EventMessage(event game.Event) ServerMessage {
	return ServerMessage{Type: TypeEvent, Payload: event}
}

// ErrorMessage builds an ERROR frame.
func ErrorMessage(code, message string, details ...string) ServerMessage {
	return ServerMessage{Type: TypeError, Payload: ErrorPayload{
		Code:    code,
		Message: message,
		Details: details,
	}}
}

// ErrorFrom converts a parse failure into its ERROR frame.
func ErrorFrom(err *ParseError) ServerMessage {
	return ErrorMessage(err.Code, err.Message, err.Details...)
}
