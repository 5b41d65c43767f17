package services

import (
	"sync"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

const hubSubscriberBufferCap = 128

// Hub fans published group payloads out to every live stream subscriber.
// Publish never blocks: a subscriber whose buffer is full misses the payload.
type Hub struct {
	logger ports.Logger

	mu     sync.Mutex
	subs   map[uint64]chan []byte
	nextID uint64
	closed bool
}

// NewHub creates an empty hub.
func NewHub(logger ports.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[uint64]chan []byte),
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan []byte, hubSubscriberBufferCap)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	h.logger.Debug("stream subscriber added", "id", id, "subscribers", len(h.subs))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
	h.logger.Debug("stream subscriber removed", "id", id, "subscribers", len(h.subs))
}

// Publish offers payload to every subscriber.
func (h *Hub) Publish(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("stream subscriber too slow, dropping update", "id", id)
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
