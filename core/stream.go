package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"patreonix/core/events"
)

const eventHistoryLimit = 256

// StreamEvent is a committed registry event with its position in the stream.
type StreamEvent struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func cloneStreamEvent(evt StreamEvent) StreamEvent {
	cloned := evt
	if evt.Attributes != nil {
		cloned.Attributes = make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			cloned.Attributes[k] = v
		}
	}
	return cloned
}

// EventStream keeps a bounded backlog of committed events and fans them out to
// live subscribers. Slow subscribers drop events rather than block commits.
type EventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan StreamEvent
	history []StreamEvent
}

// NewEventStream returns an empty stream.
func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[uint64]chan StreamEvent)}
}

// Emit implements events.Emitter.
func (s *EventStream) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	out := StreamEvent{Type: evt.EventType()}
	if payload, ok := events.Payload(evt); ok {
		out.Attributes = payload.Clone().Attributes
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	out.Sequence = s.seq
	out.Cursor = strconv.FormatUint(out.Sequence, 10)
	stored := cloneStreamEvent(out)
	s.history = append(s.history, stored)
	if len(s.history) > eventHistoryLimit {
		excess := len(s.history) - eventHistoryLimit
		trimmed := make([]StreamEvent, eventHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- cloneStreamEvent(out):
		default:
		}
	}
}

// Subscribe registers a subscriber for events after cursor. The returned
// backlog holds buffered events newer than the cursor; cancel releases the
// subscription and closes the channel.
func (s *EventStream) Subscribe(ctx context.Context, cursor string) (<-chan StreamEvent, func(), []StreamEvent) {
	updates := make(chan StreamEvent, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]StreamEvent, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneStreamEvent(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return updates, cancel, backlog
}
