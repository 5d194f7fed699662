package store

import (
	"sync"

	"github.com/cantina-forks/dal-node/dal"
)

// headerSub fans newly observed slot headers out to monitor subscribers.
// Slow subscribers drop notifications rather than block header recording.
type headerSub struct {
	mu     sync.Mutex
	subs   map[int]chan dal.SlotHeader
	nextID int
	closed bool
}

func newHeaderSub() *headerSub {
	return &headerSub{subs: make(map[int]chan dal.SlotHeader)}
}

func (h *headerSub) subscribe() (<-chan dal.SlotHeader, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan dal.SlotHeader, 16)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *headerSub) publish(header dal.SlotHeader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- header:
		default:
			log.Warnw("dropping slot header notification, slow subscriber", "sub", id)
		}
	}
}

func (h *headerSub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
