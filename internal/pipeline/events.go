package pipeline

import (
	"sync"
	"time"

	"font-metrics/internal/domain"
)

// EventType classifies messages emitted during a run.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeLog    EventType = "log"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
)

// Event is one sequenced entry of the run log.
type Event struct {
	Seq        int64            `json:"seq"`
	Timestamp  time.Time        `json:"timestamp"`
	RunID      string           `json:"runId"`
	Type       EventType        `json:"type"`
	Status     domain.RunStatus `json:"status,omitempty"`
	Message    string           `json:"message,omitempty"`
	FontFamily string           `json:"fontFamily,omitempty"`
	Path       string           `json:"path,omitempty"`
}

// defaultEventCapacity bounds a bus created without a capacity.
const defaultEventCapacity = 500

// EventBus keeps the most recent events of all runs in a ring. Retained
// events always carry consecutive sequence numbers.
type EventBus struct {
	mu     sync.RWMutex
	seq    int64
	ring   []Event
	oldest int
	size   int
}

// NewEventBus creates a bus retaining at most capacity events.
func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &EventBus{ring: make([]Event, capacity)}
}

// Publish stamps event with the next sequence number and, unless set, the
// current time. The oldest event is dropped when the ring is full.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	event.Seq = b.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.ring[(b.oldest+b.size)%len(b.ring)] = event
	if b.size < len(b.ring) {
		b.size++
	} else {
		b.oldest = (b.oldest + 1) % len(b.ring)
	}
	return event
}

// Since returns the retained events with sequence strictly greater than seq,
// oldest first.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 || seq >= b.seq {
		return nil
	}
	skip := 0
	if first := b.ring[b.oldest].Seq; seq >= first {
		skip = int(seq - first + 1)
	}

	out := make([]Event, 0, b.size-skip)
	for i := skip; i < b.size; i++ {
		out = append(out, b.ring[(b.oldest+i)%len(b.ring)])
	}
	return out
}
