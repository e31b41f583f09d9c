package app

import (
	"errors"
	"fmt"
	"strconv"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/pkg/logger"
	"marketplace_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// ChatHandler 聊天室 REST API
type ChatHandler struct {
	messageUC *MessageUseCase
}

// NewChatHandler create ChatHandler
func NewChatHandler(messageUC *MessageUseCase) *ChatHandler {
	return &ChatHandler{messageUC: messageUC}
}

// ContinueChat POST /api/chat/:roomId/continue
// body {"content":"...","product":{...}}, 201 {"message":{...}}
func (h *ChatHandler) ContinueChat(c *fiber.Ctx) error {
	var req domain.ContinueChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	// Params 指向 fasthttp 會重用的 buffer, 要存起來的值必須複製
	roomID := utils.CopyString(c.Params("roomId"))
	msg, err := h.messageUC.ContinueChat(c.UserContext(), roomID, utils.CopyString(middlewares.MemberID(c)), req.Content, req.Product)
	switch {
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrMissingRoom):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "send message failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(domain.ContinueChatResponse{Message: msg})
}

// History GET /api/chat/:roomId/messages
func (h *ChatHandler) History(c *fiber.Ctx) error {
	msgs, err := h.messageUC.History(c.UserContext(), utils.CopyString(c.Params("roomId")))
	switch {
	case errors.Is(err, ErrMissingRoom):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history unavailable"})
	}
	return c.JSON(domain.HistoryFrame{Type: domain.FrameChatHistory, Messages: msgs})
}

// ConnectCheck check relay is up
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("chat relay start!")
}

// DebugLogFlag toggle debug log flag, POST /debug?status=true
func DebugLogFlag(c *fiber.Ctx) error {
	statusStr := c.Query("status")
	logger.Log.Info("debug", zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}
