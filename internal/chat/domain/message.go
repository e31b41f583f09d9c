package domain

import "time"

// DuplicateWindow two messages from the same sender with the same content
// whose created_at differ by at most this much are the same message
const DuplicateWindow = time.Second

// ProductRef lightweight product shown inline in a chat message
type ProductRef struct {
	ID          string   `bson:"id" json:"id"`
	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	ImageURLs   []string `bson:"image_urls,omitempty" json:"image_urls,omitempty"`
}

// ChatMessage 表示一則聊天訊息
type ChatMessage struct {
	ID              string      `bson:"id,omitempty" json:"id,omitempty"`
	RoomID          string      `bson:"room_id" json:"room_id"`
	Content         string      `bson:"content" json:"content"`
	SenderID        string      `bson:"sender_id" json:"sender_id"`
	CreatedAt       time.Time   `bson:"created_at" json:"created_at"`
	AttachedProduct *ProductRef `bson:"attached_product,omitempty" json:"attached_product,omitempty"`
	Delivered       bool        `bson:"delivered" json:"delivered"`
}

// IsDuplicateOf same sender, same content, created_at within DuplicateWindow
func (m ChatMessage) IsDuplicateOf(other ChatMessage) bool {
	if m.SenderID != other.SenderID || m.Content != other.Content {
		return false
	}
	d := m.CreatedAt.Sub(other.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d <= DuplicateWindow
}
