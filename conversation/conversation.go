// Package conversation holds the bounded recent-message context a strategy
// receives alongside a query (spec §4.3: "context is a bounded recent-
// message list produced externally"). It is deliberately small — the full
// summarization/stats manager the teacher's context package offers is out
// of scope here, since the core only ever reads the tail of the list.
package conversation

import (
	"sync"

	"github.com/google/uuid"
)

// Message roles, matching the teacher's context package constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultMaxMessages bounds how many messages History keeps by default.
const DefaultMaxMessages = 50

// Message is one turn of conversation.
type Message struct {
	Role    string
	Content string
}

// History is a fixed-capacity ring of recent messages, safe for concurrent
// use since a single session's history may be read by an observer while a
// strategy is still appending to it.
type History struct {
	mu        sync.RWMutex
	max       int
	messages  []Message
	sessionID string
}

// NewHistory creates a History capped at max messages (DefaultMaxMessages
// if max <= 0), stamped with a fresh session id for correlating its turns
// across logs (the teacher mints one the same way, via uuid.NewString, for
// its own session/invocation ids).
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &History{max: max, sessionID: uuid.NewString()}
}

// SessionID identifies this History for correlation in logs and observer
// callbacks.
func (h *History) SessionID() string {
	return h.sessionID
}

// Append adds a message, dropping the oldest if the cap is exceeded.
func (h *History) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
	if len(h.messages) > h.max {
		h.messages = h.messages[len(h.messages)-h.max:]
	}
}

// Recent returns a copy of the current message list, oldest first.
func (h *History) Recent() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}
