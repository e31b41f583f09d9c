package repository

import (
	"context"
	"sync"

	"marketplace_chat/internal/chat/domain"
)

// PubSub fan-out of new messages to every socket watching a room
type PubSub interface {
	Publish(ctx context.Context, roomID string, msg domain.ChatMessage) error
	// Subscribe handler receives room messages until ctx is done
	Subscribe(ctx context.Context, roomID string, handler func(msg domain.ChatMessage)) error
}

// RoomChannel pub/sub channel of a room
func RoomChannel(roomID string) string {
	return "chat:room:" + roomID
}

// MemoryPubSub single node PubSub
type MemoryPubSub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(domain.ChatMessage)
}

// NewMemoryPubSub create MemoryPubSub
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{
		subs: make(map[string]map[int]func(domain.ChatMessage)),
	}
}

// Publish deliver msg to the current subscribers of the room
func (p *MemoryPubSub) Publish(_ context.Context, roomID string, msg domain.ChatMessage) error {
	p.mu.RLock()
	handlers := make([]func(domain.ChatMessage), 0, len(p.subs[RoomChannel(roomID)]))
	for _, h := range p.subs[RoomChannel(roomID)] {
		handlers = append(handlers, h)
	}
	p.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Subscribe register handler until ctx is done
func (p *MemoryPubSub) Subscribe(ctx context.Context, roomID string, handler func(domain.ChatMessage)) error {
	channel := RoomChannel(roomID)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.subs[channel] == nil {
		p.subs[channel] = make(map[int]func(domain.ChatMessage))
	}
	p.subs[channel][id] = handler
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs[channel], id)
		if len(p.subs[channel]) == 0 {
			delete(p.subs, channel)
		}
		p.mu.Unlock()
	}()
	return nil
}

// Subscribers number of live subscriptions of a room
func (p *MemoryPubSub) Subscribers(roomID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[RoomChannel(roomID)])
}
