package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/pkg/logger"
	"marketplace_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ChatWebsocketHandler 聊天室 websocket 連線
type ChatWebsocketHandler struct {
	messageUC    *MessageUseCase
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(messageUC *MessageUseCase, pingInterval time.Duration) *ChatWebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = time.Minute
	}
	return &ChatWebsocketHandler{
		messageUC:    messageUC,
		pingInterval: pingInterval,
	}
}

// wsWriter 同一條連線同時只能有一個 writer
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *logger.LogInfo
}

func (w *wsWriter) writeJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.log.Error("marshal frame", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		w.log.Warn("write message error", zap.Error(err))
	}
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second))
}

func (w *wsWriter) sendError(errorMsg string) {
	w.writeJSON(domain.ErrorFrame{Type: domain.FrameError, Error: errorMsg})
}

// HandleConnection 是 WebSocket 連線的進入點, 一條連線只對應一個聊天室
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	roomID := utils.CopyString(conn.Params("roomId"))
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	log := logger.Log.With(zap.String("room", roomID), zap.String("member", memberID))
	log.Info("websocket open")

	w := &wsWriter{conn: conn, log: log}
	ticker := time.NewTicker(h.pingInterval)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
		log.Info("websocket close")
	}()

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		log.Debug("received pong")
		return nil
	})

	// 訂閱聊天室, 新訊息以 new_message 推給 client
	err := h.messageUC.Subscribe(ctxClose, roomID, func(msg domain.ChatMessage) {
		w.writeJSON(domain.NewMessageFrame{Type: domain.FrameNewMessage, Message: msg})
	})
	if err != nil {
		log.Error("subscribe room", zap.Error(err))
		w.sendError("subscribe failed")
		closeWebSocketConnection(w, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := w.ping(); err != nil {
					log.Warn("ping error", zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			// 檢查是否為 Close 正常結束
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				log.Info("connection closed", zap.Error(err))
			} else {
				//直接斷線 1006
				log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		h.execWebsocketAction(ctxClose, w, roomID, mt, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx context.Context, w *wsWriter, roomID string, mt int, msg []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textMessageAction(ctx, w, roomID, msg)
	default:
		w.sendError("unsupported message type")
	}
}

type wsRequest struct {
	Type domain.FrameType `json:"type"`
	Room string           `json:"room"`
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, w *wsWriter, roomID string, msg []byte) {
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		w.log.Warn("json unmarshal error", zap.Error(err))
		w.sendError("invalid json")
		return
	}

	switch req.Type {
	case domain.FrameGetChatHistory:
		if req.Room != "" && req.Room != roomID {
			w.sendError("room mismatch")
			return
		}
		msgs, err := h.messageUC.History(ctx, roomID)
		if err != nil {
			w.sendError("history unavailable")
			return
		}
		w.writeJSON(domain.HistoryFrame{Type: domain.FrameChatHistory, Messages: msgs})

	default:
		w.sendError("unknown message type")
	}
}

func closeWebSocketConnection(w *wsWriter, code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)); err != nil {
		w.log.Warn("send close message", zap.Error(err))
	}
}
