// Package broker fans committed changes out to every live subscriber.
package broker

import (
	"context"
	"errors"
	"sync"

	"dmcore/internal/domain"
)

// ErrLagged closes a subscription whose buffer overflowed. The owner must
// reload from the store instead of trusting its partial view.
var ErrLagged = errors.New("subscriber fell behind")

// Broker publishes events on topics and hands out subscriptions.
type Broker interface {
	Publish(ctx context.Context, ev domain.Event) error
	Subscribe(topics ...string) *Subscription
}

// Subscription receives events for a fixed set of topics until closed.
type Subscription struct {
	ch     chan domain.Event
	topics []string
	owner  *Memory

	mu     sync.Mutex
	closed bool
	err    error
}

// Events delivers events in publish order per topic. The channel is closed
// when the subscription ends; Err then tells why.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Err returns ErrLagged if the broker dropped the subscriber, nil otherwise.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	if s.finish(nil) {
		s.owner.remove(s)
	}
}

func (s *Subscription) finish(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
	close(s.ch)
	return true
}

// offer reports false when the subscriber had to be dropped.
func (s *Subscription) offer(ev domain.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	select {
	case s.ch <- ev:
		s.mu.Unlock()
		return true
	default:
	}
	s.mu.Unlock()
	return !s.finish(ErrLagged)
}

// Memory is an in-process broker.
type Memory struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

var _ Broker = (*Memory)(nil)

// NewMemory returns a broker whose subscriptions buffer up to buffer events.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

func (b *Memory) Subscribe(topics ...string) *Subscription {
	s := &Subscription{
		ch:     make(chan domain.Event, b.buffer),
		topics: topics,
		owner:  b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[*Subscription]struct{})
		}
		b.subs[t][s] = struct{}{}
	}
	return s
}

// Publish delivers ev to the current subscribers of ev.Topic without
// blocking on slow readers.
func (b *Memory) Publish(_ context.Context, ev domain.Event) error {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[ev.Topic]))
	for s := range b.subs[ev.Topic] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if !s.offer(ev) {
			b.remove(s)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions across all topics.
func (b *Memory) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[*Subscription]struct{})
	for _, set := range b.subs {
		for s := range set {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}

func (b *Memory) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range s.topics {
		if set, ok := b.subs[t]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, t)
			}
		}
	}
}
