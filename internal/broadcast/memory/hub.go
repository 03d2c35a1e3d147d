// Package memory is the in-process broadcast transport. It only reaches
// subscribers in the same process.
package memory

import (
	"context"
	"sync"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
)

const subscriberBuffer = 64

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan broadcast.Envelope]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan broadcast.Envelope]struct{})}
}

// Publish never blocks: slow subscribers miss the event.
func (h *Hub) Publish(_ context.Context, env broadcast.Envelope) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[env.Channel] {
		select {
		case sub <- env:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, channels []channel.Channel) (<-chan broadcast.Envelope, func(), error) {
	sub := make(chan broadcast.Envelope, subscriberBuffer)

	h.mu.Lock()
	for _, ch := range channels {
		key := ch.String()
		set, ok := h.subscribers[key]
		if !ok {
			set = make(map[chan broadcast.Envelope]struct{})
			h.subscribers[key] = set
		}
		set[sub] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			for _, ch := range channels {
				key := ch.String()
				delete(h.subscribers[key], sub)
				if len(h.subscribers[key]) == 0 {
					delete(h.subscribers, key)
				}
			}
			close(sub)
			h.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub, cancel, nil
}

// Subscribers reports how many subscriptions exist for a channel.
func (h *Hub) Subscribers(ch channel.Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[ch.String()])
}
