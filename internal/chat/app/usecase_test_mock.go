package app

import (
	"context"

	"marketplace_chat/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert moke insert msg
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// History moke room history
func (m *MockMessageRepository) History(ctx context.Context, roomID string, limit int64) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPubSub Mock PubSub
type MockPubSub struct {
	mock.Mock
}

// Publish moke publisher
func (m *MockPubSub) Publish(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	args := m.Called(ctx, roomID, msg)
	return args.Error(0)
}

// Subscribe moke subscriber
func (m *MockPubSub) Subscribe(ctx context.Context, roomID string, handler func(msg domain.ChatMessage)) error {
	args := m.Called(ctx, roomID, handler)
	return args.Error(0)
}

// MockNotifier Mock Notifier
type MockNotifier struct {
	mock.Mock
}

// Notify moke notify
func (m *MockNotifier) Notify(ctx context.Context, msg domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
