package game

// EventType identifies a queued table event.
type EventType string

const (
	EventDealHole  EventType = "DEAL_HOLE"
	EventDealFlop  EventType = "DEAL_FLOP"
	EventDealTurn  EventType = "DEAL_TURN"
	EventDealRiver EventType = "DEAL_RIVER"
	EventShowdown  EventType = "SHOWDOWN"
	EventHandEnd   EventType = "HAND_END"
	EventNewHand   EventType = "NEW_HAND"
	EventTableEnd  EventType = "TABLE_END"
)

// Event is a state-transition notification queued by the engine and drained
// by the orchestrator for broadcast. Data is already wire-shaped.
type Event struct {
	Event EventType      `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func (e *Engine) queueEvent(typ EventType, data map[string]any) {
	e.pendingEvents = append(e.pendingEvents, Event{Event: typ, Data: data})
}

// DrainEvents returns queued events in production order and clears the queue.
func (e *Engine) DrainEvents() []Event {
	events := e.pendingEvents
	e.pendingEvents = nil
	return events
}
