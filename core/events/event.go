package events

import "patreonix/core/types"

// Event represents a structured state change emitted by the registry.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (stream, indexer,
// webhooks).
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(evt Event) { f(evt) }

// NoopEmitter discards all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// carrier is implemented by events wrapping a flat attribute payload.
type carrier interface {
	Event() *types.Event
}

// Payload returns the attribute payload carried by evt, if any.
func Payload(evt Event) (*types.Event, bool) {
	if evt == nil {
		return nil, false
	}
	c, ok := evt.(carrier)
	if !ok {
		return nil, false
	}
	payload := c.Event()
	return payload, payload != nil
}
