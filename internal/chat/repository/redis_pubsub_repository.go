package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisPubSub redis pub/sub across relay nodes
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
	}
}

// Publish 將 message 序列化後，發布到聊天室 channel
func (r *RedisPubSub) Publish(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.Publish(ctx, RoomChannel(roomID), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", RoomChannel(roomID), err)
	}
	return nil
}

// Subscribe 訂閱聊天室，收到訊息後呼叫 handler，ctx 結束時關閉訂閱
func (r *RedisPubSub) Subscribe(ctx context.Context, roomID string, handler func(domain.ChatMessage)) error {
	channel := RoomChannel(roomID)
	sub := r.client.Subscribe(ctx, channel)

	// 等訂閱確認, 避免漏掉剛發布的訊息
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var msg domain.ChatMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					logger.Log.Error("drop pubsub payload", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(msg)
			case <-ctx.Done():
				logger.Log.Debug("unsubscribe", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}
