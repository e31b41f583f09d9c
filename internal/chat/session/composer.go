package session

import (
	"context"
	"strings"
	"sync"

	"marketplace_chat/internal/chat/api"
)

// MessageSender sends a text message to the room, *Session
type MessageSender interface {
	SendMessage(ctx context.Context, content string) error
}

// Composer input draft. Submit clears the draft before the request and
// puts the text back when the send fails.
type Composer struct {
	sender MessageSender

	mu      sync.Mutex
	draft   string
	sending bool
}

// NewComposer composer that sends through sender
func NewComposer(sender MessageSender) *Composer {
	return &Composer{sender: sender}
}

// SetDraft replace the draft text
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft current draft text
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Sending a submit is in flight
func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Submit send the draft. Blank drafts are not sent and stay untouched.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	content := c.draft
	if strings.TrimSpace(content) == "" {
		c.mu.Unlock()
		return api.ErrEmptyContent
	}
	c.draft = ""
	c.sending = true
	c.mu.Unlock()

	err := c.sender.SendMessage(ctx, content)

	c.mu.Lock()
	c.sending = false
	if err != nil {
		// 送出期間又輸入的內容接在原文後面
		if c.draft == "" {
			c.draft = content
		} else {
			c.draft = content + " " + c.draft
		}
	}
	c.mu.Unlock()

	return err
}
