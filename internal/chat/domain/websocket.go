package domain

// FrameType websocket frame "type" field
type FrameType string

const (
	// FrameGetChatHistory client -> server, ask for the room history
	FrameGetChatHistory FrameType = "get_chat_history"

	// FrameNewMessage server -> client, one incremental message
	FrameNewMessage FrameType = "new_message"
	// FrameChatHistory server -> client, authoritative snapshot
	FrameChatHistory FrameType = "chat_history"
	// FrameError server -> client, request could not be served
	FrameError FrameType = "error"
)

// HistoryRequest {"type":"get_chat_history","room":"..."}
type HistoryRequest struct {
	Type FrameType `json:"type"`
	Room string    `json:"room"`
}

// NewHistoryRequest build the history request for roomID
func NewHistoryRequest(roomID string) HistoryRequest {
	return HistoryRequest{Type: FrameGetChatHistory, Room: roomID}
}

// NewMessageFrame {"type":"new_message","message":{...}}
type NewMessageFrame struct {
	Type    FrameType   `json:"type"`
	Message ChatMessage `json:"message"`
}

// HistoryFrame {"type":"chat_history","messages":[...]}
type HistoryFrame struct {
	Type     FrameType     `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

// ErrorFrame {"type":"error","error":"..."}
type ErrorFrame struct {
	Type  FrameType `json:"type"`
	Error string    `json:"error"`
}

// ContinueChatRequest HTTP body of continueChat
type ContinueChatRequest struct {
	Content string      `json:"content"`
	Product *ProductRef `json:"product,omitempty"`
}

// ContinueChatResponse HTTP response of continueChat
type ContinueChatResponse struct {
	Message ChatMessage `json:"message"`
}
