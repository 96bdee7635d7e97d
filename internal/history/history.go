// Package history keeps the short rolling window of conversation turns
// sent with every completion request.
package history

import (
	"sync"

	"github.com/akarimi/nana/internal/domain"
)

// DefaultLimit is the number of messages kept. Old turns age out in
// user/assistant pairs so the window never starts mid-exchange.
const DefaultLimit = 8

// History is a bounded conversation log. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	limit    int
	messages []domain.Message
}

// New creates a history with the given message limit. Zero or negative
// limits fall back to DefaultLimit.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Add appends a message and trims the oldest pair when over the limit.
func (h *History) Add(role, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, domain.Message{Role: role, Text: text})
	for len(h.messages) > h.limit {
		drop := 2
		if drop > len(h.messages) {
			drop = len(h.messages)
		}
		h.messages = h.messages[drop:]
	}
}

// Messages returns a copy of the current window, oldest first.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Message(nil), h.messages...)
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
