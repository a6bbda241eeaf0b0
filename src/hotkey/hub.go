package hotkey

import (
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

// EventSource hands out independent subscriptions to global input events.
// The returned cancel func releases the subscription and closes its channel.
type EventSource interface {
	Subscribe() (<-chan gohook.Event, func())
}

const subscriberBuffer = 256

// Hub multiplexes the single process-wide gohook event stream to any number
// of subscribers. The hook is started on first subscription.
type Hub struct {
	start func() chan gohook.Event
	end   func()

	mu      sync.Mutex
	subs    map[int]chan gohook.Event
	next    int
	started bool
	closed  bool
}

// NewHub returns a Hub backed by gohook.
func NewHub() *Hub {
	return newHub(gohook.Start, gohook.End)
}

func newHub(start func() chan gohook.Event, end func()) *Hub {
	return &Hub{start: start, end: end, subs: make(map[int]chan gohook.Event)}
}

func (h *Hub) Subscribe() (<-chan gohook.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan gohook.Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	if !h.started {
		h.started = true
		go h.pump()
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the hook and closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	started := h.started
	for id, c := range h.subs {
		delete(h.subs, id)
		close(c)
	}
	h.mu.Unlock()
	if started && h.end != nil {
		h.end()
	}
}

func (h *Hub) pump() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hotkey: PANIC in hook goroutine: %v", r)
		}
	}()

	log.Printf("hotkey: starting gohook event loop")
	evChan := h.start()
	if evChan == nil {
		log.Printf("hotkey: ERROR: gohook.Start() returned nil channel")
		return
	}
	for ev := range evChan {
		h.mu.Lock()
		for _, c := range h.subs {
			select {
			case c <- ev:
			default:
				// Slow subscriber; mouse-move floods are not worth blocking the hook.
			}
		}
		h.mu.Unlock()
	}
	log.Printf("hotkey: event channel closed")
}
