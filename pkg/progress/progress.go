// Package progress fans out timestamped search progress events to any
// number of in-process listeners (the CLI verbose printer, a UI goroutine,
// a test recorder).
//
// Delivery is best effort: each listener owns a buffered channel and events
// that do not fit are dropped for that listener only, so a slow consumer can
// never stall a poll loop. Events are not persisted or replayed.
package progress

import (
	"sync"
	"time"
)

// Phase names what the emitting loop is doing.
type Phase string

const (
	PhaseSubmitted  Phase = "submitted"
	PhaseWaiting    Phase = "waiting"
	PhaseCompleted  Phase = "completed"
	PhaseCancelling Phase = "cancelling"
	PhaseCancelled  Phase = "cancelled"
	PhaseRetrieving Phase = "retrieving"
	PhaseRetrieved  Phase = "retrieved"
)

// Event is one progress notification for a search request.
type Event struct {
	Time      time.Time `json:"time"`
	Domain    string    `json:"domain,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Phase     Phase     `json:"phase"`
	Attempt   int       `json:"attempt,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Notifier receives progress events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Discard is a Notifier that drops everything.
var Discard Notifier = NotifierFunc(func(Event) {})

// Hub is a concurrency-safe fan-out dispatcher.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister(id) when done.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Notify delivers e to every listener, dropping it for listeners whose
// buffer is full. A zero Time is filled with the current time.
func (h *Hub) Notify(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Close unregisters every listener.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.listeners {
		delete(h.listeners, id)
		close(ch)
	}
}
