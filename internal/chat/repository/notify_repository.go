package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"marketplace_chat/internal/chat/domain"

	"github.com/segmentio/kafka-go"
)

// previewRunes push notification preview length
const previewRunes = 80

// Notifier hands new messages to the push notification pipeline
type Notifier interface {
	Notify(ctx context.Context, msg domain.ChatMessage) error
}

// NotificationEvent kafka payload consumed by the push notification service
type NotificationEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Preview   string    `json:"preview"`
	ProductID string    `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationEvent build the event of msg
func NewNotificationEvent(msg domain.ChatMessage) NotificationEvent {
	ev := NotificationEvent{
		Type:      string(domain.FrameNewMessage),
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Preview:   preview(msg.Content),
		CreatedAt: msg.CreatedAt,
	}
	if msg.AttachedProduct != nil {
		ev.ProductID = msg.AttachedProduct.ID
	}
	return ev
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	r := []rune(content)
	return string(r[:previewRunes]) + "…"
}

// KafkaWriter the part of *kafka.Writer the notifier uses
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publish NotificationEvent keyed by room
type KafkaNotifier struct {
	writer KafkaWriter
}

// NewKafkaNotifier create KafkaNotifier
func NewKafkaNotifier(w KafkaWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

// Notify write one event, the room id keeps a room on one partition
func (n *KafkaNotifier) Notify(ctx context.Context, msg domain.ChatMessage) error {
	data, err := json.Marshal(NewNotificationEvent(msg))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RoomID),
		Value: data,
		Time:  msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// Close close the kafka writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// NopNotifier used when no kafka brokers are configured
type NopNotifier struct{}

// Notify does nothing
func (NopNotifier) Notify(context.Context, domain.ChatMessage) error { return nil }
