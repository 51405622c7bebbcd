package agent

import (
	"sync"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventDetection   EventType = "detection"
	EventTranscript  EventType = "transcript"
	EventReply       EventType = "reply"
	EventToolCall    EventType = "tool_call"
	EventError       EventType = "error"
)

// Event is one item on the broadcast hub.
type Event struct {
	Type EventType      `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Hub broadcasts events to subscribers. Slow subscribers drop events
// rather than blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns an event channel and a cancel function. The channel
// is closed on cancel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, dropping it for any
// whose buffer is full.
func (h *Hub) Publish(typ EventType, data map[string]any) {
	ev := Event{Type: typ, Time: time.Now(), Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
