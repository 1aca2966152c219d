// Package presence tracks short-lived typing state per conversation.
package presence

import (
	"context"
	"sync"
	"time"
)

// Tracker records who is typing where. Entries expire on their own after the
// tracker's TTL unless refreshed.
type Tracker interface {
	SetTyping(ctx context.Context, conversationID, uid string, typing bool) error
	// Typing returns the users currently typing in conversationID.
	Typing(ctx context.Context, conversationID string) (map[string]bool, error)
}

// Memory keeps typing state in process.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]map[string]time.Time
}

var _ Tracker = (*Memory)(nil)

func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

func NewMemoryWithClock(ttl time.Duration, now func() time.Time) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]map[string]time.Time),
	}
}

func (m *Memory) SetTyping(_ context.Context, conversationID, uid string, typing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.entries[conversationID]
	if !typing {
		delete(users, uid)
		if len(users) == 0 {
			delete(m.entries, conversationID)
		}
		return nil
	}
	if users == nil {
		users = make(map[string]time.Time)
		m.entries[conversationID] = users
	}
	users[uid] = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) Typing(_ context.Context, conversationID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make(map[string]bool)
	for uid, exp := range m.entries[conversationID] {
		if now.Before(exp) {
			out[uid] = true
			continue
		}
		delete(m.entries[conversationID], uid)
	}
	if len(m.entries[conversationID]) == 0 {
		delete(m.entries, conversationID)
	}
	return out, nil
}
