package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace_chat/internal/chat/domain"
)

// FrameKind how an inbound frame applies to the message list
type FrameKind int

const (
	// KindSingle append one message (dedup)
	KindSingle FrameKind = iota + 1
	// KindBatch replace the whole list
	KindBatch
)

func (k FrameKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Frame decoded server frame
type Frame struct {
	Kind     FrameKind
	Message  domain.ChatMessage
	Messages []domain.ChatMessage
}

var (
	// ErrEmptyFrame blank payload
	ErrEmptyFrame = errors.New("empty frame")
	// ErrUnknownFrame valid json that matches none of the accepted shapes
	ErrUnknownFrame = errors.New("unknown frame")
)

type envelope struct {
	Type     domain.FrameType `json:"type"`
	Message  json.RawMessage  `json:"message"`
	Messages json.RawMessage  `json:"messages"`
	Error    string           `json:"error"`

	// bare ChatMessage fallback
	SenderID        string          `json:"sender_id"`
	Content         string          `json:"content"`
	AttachedProduct json.RawMessage `json:"attached_product"`
	CreatedAt       string          `json:"created_at"`
}

// bareMessage sender plus any message body field, product-only messages included
func (e envelope) bareMessage() bool {
	if e.Type != "" || e.SenderID == "" {
		return false
	}
	return e.Content != "" || !isNull(e.AttachedProduct) || e.CreatedAt != ""
}

// Decode parse one server frame. Accepted shapes:
//
//	{"type":"new_message","message":{...}}
//	[{...},{...}]
//	{"messages":[...]} / {"type":"chat_history","messages":[...]}
//	{...} bare ChatMessage
func Decode(data []byte) (Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	if data[0] == '[' {
		var batch []domain.ChatMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return Frame{}, fmt.Errorf("decode batch: %w", err)
		}
		return Frame{Kind: KindBatch, Messages: batch}, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch {
	case env.Type == domain.FrameNewMessage:
		if isNull(env.Message) {
			return Frame{}, fmt.Errorf("%w: new_message without message", ErrUnknownFrame)
		}
		var m domain.ChatMessage
		if err := json.Unmarshal(env.Message, &m); err != nil {
			return Frame{}, fmt.Errorf("decode new_message: %w", err)
		}
		return Frame{Kind: KindSingle, Message: m}, nil

	case !isNull(env.Messages) && (env.Type == "" || env.Type == domain.FrameChatHistory):
		var batch []domain.ChatMessage
		if err := json.Unmarshal(env.Messages, &batch); err != nil {
			return Frame{}, fmt.Errorf("decode messages: %w", err)
		}
		return Frame{Kind: KindBatch, Messages: batch}, nil

	case env.bareMessage():
		var m domain.ChatMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Frame{}, fmt.Errorf("decode message: %w", err)
		}
		return Frame{Kind: KindSingle, Message: m}, nil

	case env.Type == domain.FrameError:
		return Frame{}, fmt.Errorf("%w: server error %q", ErrUnknownFrame, env.Error)
	}

	return Frame{}, fmt.Errorf("%w: type %q", ErrUnknownFrame, env.Type)
}

// EncodeHistoryRequest {"type":"get_chat_history","room":roomID}
func EncodeHistoryRequest(roomID string) ([]byte, error) {
	return json.Marshal(domain.NewHistoryRequest(roomID))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
