package router

import (
	"context"

	"marketplace_chat/internal/chat/app"
	"marketplace_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册聊天室相关的路由
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, chatHandler *app.ChatHandler) {
	r.Get("/", app.ConnectCheck)
	r.Post("/debug", app.DebugLogFlag)

	ws := r.Group("/ws", middlewares.JWTMiddleware(), upgradeRequired)
	ws.Get("/chat/:roomId", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	api := r.Group("/api/chat", middlewares.JWTMiddleware())
	api.Post("/:roomId/continue", chatHandler.ContinueChat)
	api.Get("/:roomId/messages", chatHandler.History)
}

// upgradeRequired 非 websocket 請求直接拒絕
func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
