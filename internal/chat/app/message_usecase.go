package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/internal/chat/repository"
	errprocess "marketplace_chat/pkg/err"
	"marketplace_chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyContent message has no text
	ErrEmptyContent = errors.New("content is required")
	// ErrMissingRoom no room id in the request
	ErrMissingRoom = errors.New("room id is required")
)

// MessageUseCase 負責處理聊天訊息: 寫入, 廣播, 推播
type MessageUseCase struct {
	msgRepo      repository.MessageRepository
	pubSub       repository.PubSub
	notifier     repository.Notifier
	historyLimit int64
	now          func() time.Time
}

// NewMessageUseCase init message use case, notifier may be nil
func NewMessageUseCase(
	msgRepo repository.MessageRepository,
	pubSub repository.PubSub,
	notifier repository.Notifier,
	historyLimit int64,
) *MessageUseCase {
	if notifier == nil {
		notifier = repository.NopNotifier{}
	}
	return &MessageUseCase{
		msgRepo:      msgRepo,
		pubSub:       pubSub,
		notifier:     notifier,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// ContinueChat store a new message and fan it out to the room
func (uc *MessageUseCase) ContinueChat(ctx context.Context, roomID, senderID, content string, product *domain.ProductRef) (domain.ChatMessage, error) {
	if strings.TrimSpace(roomID) == "" {
		return domain.ChatMessage{}, ErrMissingRoom
	}
	if strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, ErrEmptyContent
	}

	// 1. 建立訊息
	msg := domain.ChatMessage{
		ID:              uuid.New().String(),
		RoomID:          roomID,
		Content:         content,
		SenderID:        senderID,
		CreatedAt:       uc.now().UTC().Truncate(time.Millisecond),
		AttachedProduct: product,
		Delivered:       true,
	}

	// 2. 寫入 DB
	if err := uc.msgRepo.Insert(ctx, &msg); err != nil {
		return domain.ChatMessage{}, errprocess.Wrap(err, "store message", zap.String("room", roomID))
	}

	// 3. pubSub 同步給房間內所有連線(包含自己, client 以 echo 顯示)
	if err := uc.pubSub.Publish(ctx, roomID, msg); err != nil {
		// 訊息已寫入, 其他人重連時會從 history 拿到
		logger.Log.Error("publish message", zap.String("room", roomID), zap.String("message_id", msg.ID), zap.Error(err))
	}

	// 4. 推播
	if err := uc.notifier.Notify(ctx, msg); err != nil {
		logger.Log.Warn("notify message", zap.String("room", roomID), zap.String("message_id", msg.ID), zap.Error(err))
	}

	return msg, nil
}

// History latest messages of the room, oldest first
func (uc *MessageUseCase) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrMissingRoom
	}
	msgs, err := uc.msgRepo.History(ctx, roomID, uc.historyLimit)
	if err != nil {
		return nil, errprocess.Wrap(err, "load history", zap.String("room", roomID))
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// Subscribe push room messages to handler until ctx is done
func (uc *MessageUseCase) Subscribe(ctx context.Context, roomID string, handler func(domain.ChatMessage)) error {
	return uc.pubSub.Subscribe(ctx, roomID, handler)
}
