package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace_chat/internal/chat/codec"
	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/internal/chat/retry"
	"marketplace_chat/internal/chat/transport"
	"marketplace_chat/pkg/config"
	"marketplace_chat/pkg/logger"
	"marketplace_chat/pkg/token"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Sender continueChat call, *api.ChatClient
type Sender interface {
	ContinueChat(ctx context.Context, roomID, content string, product *domain.ProductRef) (domain.ChatMessage, error)
}

// Config one chat room session
type Config struct {
	Scheme string
	Host   string
	RoomID string
	Token  string
	// SelfID member id of the viewer, read from the token when empty
	SelfID string

	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	HistoryTimeout time.Duration
	DialTimeout    time.Duration
}

// ConfigFrom build a session Config for roomID from the client yaml setting
func ConfigFrom(c config.ChatClient, roomID string) Config {
	c = config.DefaultChatClient(c)
	return Config{
		Scheme:         c.Scheme,
		Host:           c.Host,
		RoomID:         roomID,
		Token:          c.Token,
		SelfID:         c.SelfID,
		MaxAttempts:    c.Reconnect.MaxAttempts,
		BaseDelay:      c.Reconnect.BaseDelay,
		MaxDelay:       c.Reconnect.MaxDelay,
		HistoryTimeout: c.HistoryTimeout,
		DialTimeout:    c.DialTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := config.DefaultChatClient(config.ChatClient{})
	if c.Scheme == "" {
		c.Scheme = def.Scheme
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.Reconnect.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.Reconnect.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.Reconnect.MaxDelay
	}
	if c.HistoryTimeout <= 0 {
		c.HistoryTimeout = def.HistoryTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	return c
}

// State observable session state
type State struct {
	Status           domain.ConnectionStatus
	IsConnecting     bool
	IsLoadingHistory bool
	ReconnectAttempt int
	MaxAttempts      int
	// CanRetry reconnect attempts are exhausted (or the endpoint is unusable),
	// only Retry will connect again
	CanRetry bool
}

// Option configure a Session
type Option func(*Session)

// WithClock replace the timer source
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithOnUpdate f is called after every state or message change, from any goroutine
func WithOnUpdate(f func(State)) Option {
	return func(s *Session) { s.onUpdate = f }
}

// Session chat room connection. Socket and timer callbacks are serialized by mu
// and dropped when their generation is no longer current.
type Session struct {
	cfg    Config
	selfID string
	dialer transport.Dialer
	sender Sender
	clock  Clock
	log    *logger.LogInfo

	onUpdate func(State)

	mu               sync.Mutex
	gen              uint64
	status           domain.ConnectionStatus
	conn             transport.Conn
	cancelDial       context.CancelFunc
	policy           *retry.Policy
	reconnectAttempt int
	pendingHistory   bool
	canRetry         bool
	reconnectTimer   Timer
	historyTimer     Timer
	messages         *domain.MessageList

	wg sync.WaitGroup
}

// New create a disconnected Session
func New(cfg Config, dialer transport.Dialer, sender Sender, opts ...Option) *Session {
	cfg = cfg.withDefaults()

	s := &Session{
		cfg:      cfg,
		selfID:   cfg.SelfID,
		dialer:   dialer,
		sender:   sender,
		clock:    SystemClock(),
		policy:   retry.NewPolicy(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxDelay),
		messages: domain.NewMessageList(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.selfID == "" && cfg.Token != "" {
		if id, err := token.PeekMemberID(cfg.Token); err == nil {
			s.selfID = id
		}
	}
	s.log = logger.Log.With(zap.String("room", cfg.RoomID))

	return s
}

// RoomID room of this session
func (s *Session) RoomID() string {
	return s.cfg.RoomID
}

// SelfID member id of the viewer, empty when unknown
func (s *Session) SelfID() string {
	return s.selfID
}

// IsMine msg was authored by the viewer
func (s *Session) IsMine(msg domain.ChatMessage) bool {
	return s.selfID != "" && msg.SenderID == s.selfID
}

// State snapshot of the session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Status:           s.status,
		IsConnecting:     s.status == domain.StatusConnecting,
		IsLoadingHistory: s.pendingHistory,
		ReconnectAttempt: s.reconnectAttempt,
		MaxAttempts:      s.policy.MaxAttempts(),
		CanRetry:         s.canRetry,
	}
}

// Messages ordered copy of the room messages
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.Items()
}

// Connect open the socket. No-op while connecting or connected.
func (s *Session) Connect() {
	s.mu.Lock()
	changed := s.connectLocked()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Retry manual reconnect, resets the attempt counter
func (s *Session) Retry() {
	s.mu.Lock()
	if s.status != domain.StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.stopReconnectTimerLocked()
	s.reconnectAttempt = 0
	s.policy.Reset()
	s.canRetry = false
	s.connectLocked()
	s.mu.Unlock()

	s.notify()
}

// Disconnect close the socket with 1000 and cancel every pending callback.
// Never schedules a reconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.gen++
	s.stopReconnectTimerLocked()
	s.stopHistoryTimerLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	conn := s.conn
	s.conn = nil
	wasConnected := s.status != domain.StatusDisconnected
	s.status = domain.StatusDisconnected
	s.pendingHistory = false
	s.reconnectAttempt = 0
	s.policy.Reset()
	s.canRetry = false
	s.mu.Unlock()

	if conn != nil {
		if err := transport.CloseNormally(conn, "session closed"); err != nil {
			s.log.Debug("close socket", zap.Error(err))
		}
	}
	if wasConnected {
		s.log.Info("chat session disconnected")
	}
	s.notify()
}

// Close Disconnect and wait for the socket goroutines to exit
func (s *Session) Close() {
	s.Disconnect()
	s.wg.Wait()
}

// SendMessage post content through continueChat. The message shows up in
// Messages only once the server echoes it back over the socket.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	return s.SendProduct(ctx, content, nil)
}

// SendProduct SendMessage with a product attached
func (s *Session) SendProduct(ctx context.Context, content string, product *domain.ProductRef) error {
	if _, err := s.sender.ContinueChat(ctx, s.cfg.RoomID, content, product); err != nil {
		s.log.Warn("send message failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) connectLocked() bool {
	if s.status != domain.StatusDisconnected {
		return false
	}

	url, err := transport.RoomURL(s.cfg.Scheme, s.cfg.Host, s.cfg.RoomID, s.cfg.Token)
	if err != nil {
		// 設定錯誤重連也不會好, 只留手動重試
		s.log.Error("build chat url", zap.Error(err))
		s.canRetry = true
		return true
	}

	s.stopReconnectTimerLocked()
	s.gen++
	gen := s.gen
	s.status = domain.StatusConnecting
	s.canRetry = false

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	s.cancelDial = cancel

	s.wg.Add(1)
	go s.run(ctx, cancel, gen, url)
	return true
}

// run dial then read until the socket dies
func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, url string) {
	defer s.wg.Done()

	conn, err := s.dial(ctx, url)
	cancel()
	if err != nil {
		s.onDialError(gen, err)
		return
	}
	if !s.onOpen(gen, conn) {
		_ = conn.Close()
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.onClose(gen, conn, transport.CloseCode(err), err)
			return
		}
		s.onFrame(gen, data)
	}
}

func (s *Session) dial(ctx context.Context, url string) (conn transport.Conn, err error) {
	defer func() {
		if r := recover(); r != nil {
			conn, err = nil, fmt.Errorf("dial panic: %v", r)
		}
	}()
	return s.dialer.Dial(ctx, url)
}

func (s *Session) onOpen(gen uint64, conn transport.Conn) bool {
	payload, err := codec.EncodeHistoryRequest(s.cfg.RoomID)
	if err != nil {
		s.log.Error("encode history request", zap.Error(err))
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.cancelDial = nil
	s.conn = conn
	s.status = domain.StatusConnected
	s.reconnectAttempt = 0
	s.policy.Reset()
	s.canRetry = false
	s.pendingHistory = true

	if payload != nil {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			// the read loop sees the broken socket and takes the close path
			s.log.Warn("send history request", zap.Error(err))
		}
	}
	s.stopHistoryTimerLocked()
	s.historyTimer = s.clock.AfterFunc(s.cfg.HistoryTimeout, func() {
		s.onHistoryTimeout(gen)
	})
	s.mu.Unlock()

	s.log.Info("chat session connected")
	s.notify()
	return true
}

func (s *Session) onFrame(gen uint64, data []byte) {
	frame, err := codec.Decode(data)
	if err != nil {
		s.log.Warn("drop chat frame", zap.Error(err), zap.Int("size", len(data)))
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	changed := false
	switch frame.Kind {
	case codec.KindBatch:
		s.messages.Replace(frame.Messages)
		s.pendingHistory = false
		s.stopHistoryTimerLocked()
		changed = true
	case codec.KindSingle:
		m := frame.Message
		if m.RoomID != "" && m.RoomID != s.cfg.RoomID {
			s.log.Debug("drop message for another room", zap.String("message_room", m.RoomID))
			break
		}
		changed = s.messages.Append(m)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Session) onClose(gen uint64, conn transport.Conn, code int, err error) {
	_ = conn.Close()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.closedLocked(gen, code, err)
	s.mu.Unlock()

	s.notify()
}

// onDialError a failed dial is an abnormal close of a socket that never opened
func (s *Session) onDialError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.cancelDial = nil
	s.closedLocked(gen, transport.CloseAbnormalClosure, err)
	s.mu.Unlock()

	s.notify()
}

func (s *Session) closedLocked(gen uint64, code int, err error) {
	s.status = domain.StatusDisconnected
	s.pendingHistory = false
	s.stopHistoryTimerLocked()

	if code == transport.CloseNormalClosure {
		s.log.Info("chat socket closed normally")
		return
	}

	delay, ok := s.policy.Next()
	if !ok {
		s.canRetry = true
		s.log.Warn("chat socket lost, reconnect attempts exhausted",
			zap.Int("code", code), zap.Int("attempts", s.reconnectAttempt), zap.Error(err))
		return
	}

	s.log.Warn("chat socket lost, reconnecting",
		zap.Int("code", code), zap.Int("attempt", s.reconnectAttempt), zap.Duration("delay", delay), zap.Error(err))
	s.reconnectTimer = s.clock.AfterFunc(delay, func() {
		s.onReconnectTimer(gen)
	})
}

func (s *Session) onReconnectTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.status != domain.StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	s.reconnectAttempt++
	s.connectLocked()
	s.mu.Unlock()

	s.notify()
}

func (s *Session) onHistoryTimeout(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.pendingHistory {
		s.mu.Unlock()
		return
	}
	s.pendingHistory = false
	s.historyTimer = nil
	s.mu.Unlock()

	s.log.Debug("no chat history before timeout")
	s.notify()
}

func (s *Session) stopReconnectTimerLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) stopHistoryTimerLocked() {
	if s.historyTimer != nil {
		s.historyTimer.Stop()
		s.historyTimer = nil
	}
}

func (s *Session) notify() {
	if s.onUpdate == nil {
		return
	}
	s.onUpdate(s.State())
}
