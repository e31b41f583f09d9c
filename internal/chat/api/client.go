package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrEmptyContent nothing to send
	ErrEmptyContent = errors.New("message content is empty")
	// ErrSendFailed server rejected the message or was unreachable
	ErrSendFailed = errors.New("send message failed")
)

// StatusError non-2xx answer of the chat API
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api status %d: %s", e.Code, e.Message)
}

// ChatClient calls the chat REST API (continueChat)
type ChatClient struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewChatClient baseURL like https://api.example.com
func NewChatClient(baseURL, authToken string, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token.TrimBearer(authToken),
		timeout: timeout,
	}
}

// ContinueChatURL POST endpoint for roomID
func (c *ChatClient) ContinueChatURL(roomID string) string {
	return c.baseURL + "/api/chat/" + url.PathEscape(roomID) + "/continue"
}

// ContinueChat post content to roomID. The stored message comes back in the
// response and is also echoed to every socket in the room.
func (c *ChatClient) ContinueChat(ctx context.Context, roomID, content string, product *domain.ProductRef) (domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(c.ContinueChatURL(roomID))
	if c.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	agent.JSON(domain.ContinueChatRequest{Content: content, Product: product})
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrSendFailed, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", ErrSendFailed, &StatusError{Code: code, Message: errorMessage(body)})
	}

	var resp domain.ContinueChatResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.ChatMessage{}, fmt.Errorf("%w: decode response: %v", ErrSendFailed, err)
		}
	}
	return resp.Message, nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
