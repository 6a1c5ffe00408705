package services

import (
	"sync"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
	"github.com/tbourn/go-ticket-bridge/internal/metrics"
)

// Batch is one non-empty poll result for a session.
type Batch struct {
	SessionID string
	Messages  []domain.ChatMessage
}

// Hub fans poll results out to stream subscribers of the same session.
// Publish never blocks. Polls advance the session cursor before publishing,
// so a batch that cannot be queued would be gone for good; instead, when a
// subscriber's buffer is full its queued batches are folded, oldest first,
// into one batch together with the new messages.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Batch]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Batch]struct{})}
}

// Subscribe registers a subscriber for sessionID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(sessionID string, buf int) (<-chan Batch, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Batch, buf)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan Batch]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	metrics.StreamSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			h.mu.Unlock()
			close(ch)
			metrics.StreamSubscribers.Dec()
		})
	}
}

// Publish delivers msgs to every subscriber of sessionID without blocking and
// returns how many received it. Empty batches are not published.
func (h *Hub) Publish(sessionID string, msgs []domain.ChatMessage) int {
	if h == nil || len(msgs) == 0 {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for ch := range h.subs[sessionID] {
		select {
		case ch <- Batch{SessionID: sessionID, Messages: msgs}:
			n++
			continue
		default:
		}
		// Publishers hold h.mu, so once drained only the subscriber touches
		// ch and the send below has room.
		select {
		case ch <- Batch{SessionID: sessionID, Messages: fold(ch, msgs)}:
			n++
		default:
		}
	}
	return n
}

// fold drains every batch queued on ch and returns their messages followed
// by msgs.
func fold(ch chan Batch, msgs []domain.ChatMessage) []domain.ChatMessage {
	var out []domain.ChatMessage
	for {
		select {
		case b := <-ch:
			out = append(out, b.Messages...)
		default:
			return append(out, msgs...)
		}
	}
}

// Subscribers returns the number of subscribers of sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
