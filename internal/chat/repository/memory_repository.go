package repository

import (
	"context"
	"sync"

	"marketplace_chat/internal/chat/domain"
)

type memoryMessageRepository struct {
	mu    sync.RWMutex
	rooms map[string][]domain.ChatMessage
}

// NewMemoryMessageRepository in-process MessageRepository for single node runs and tests
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{
		rooms: make(map[string][]domain.ChatMessage),
	}
}

func (r *memoryMessageRepository) Insert(_ context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[msg.RoomID] = append(r.rooms[msg.RoomID], *msg)
	return nil
}

func (r *memoryMessageRepository) History(_ context.Context, roomID string, limit int64) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.rooms[roomID]
	start := 0
	if limit > 0 && int64(len(all)) > limit {
		start = len(all) - int(limit)
	}

	out := make([]domain.ChatMessage, len(all)-start)
	copy(out, all[start:])
	return out, nil
}
