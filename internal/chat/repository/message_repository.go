package repository

import (
	"context"
	"fmt"

	"marketplace_chat/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition room message storage
type MessageRepository interface {
	// Insert 寫入一筆聊天訊息
	Insert(ctx context.Context, msg *domain.ChatMessage) error
	// History 取得聊天室最新 limit 筆訊息, 依 created_at 由舊到新
	History(ctx context.Context, roomID string, limit int64) ([]domain.ChatMessage, error)
}

type mongoMessageRepository struct {
	coll *mongo.Collection
}

// MessageCollection mongo collection holding chat messages
const MessageCollection = "chat_messages"

// NewMongoMessageRepository create a mongo MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		coll: db.Collection(MessageCollection),
	}
}

// EnsureMessageIndexes room_id + created_at index used by History
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(MessageCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "room_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("create message index: %w", err)
	}
	return nil
}

func (r *mongoMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *mongoMessageRepository) History(ctx context.Context, roomID string, limit int64) ([]domain.ChatMessage, error) {
	// 先取最新的 limit 筆, 再反轉成時間順序
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}

	messages := []domain.ChatMessage{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	reverse(messages)
	return messages, nil
}

func reverse(messages []domain.ChatMessage) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
