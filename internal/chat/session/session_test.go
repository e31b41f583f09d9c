package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/pkg/config"
	"marketplace_chat/pkg/token"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const historyTimeout = 3 * time.Second

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	s      *Session
	dialer *fakeDialer
	clock  *fakeClock
	sender *fakeSender
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	cfg := Config{
		Host:           "chat.test",
		RoomID:         "room-1",
		Token:          "tok",
		SelfID:         "me",
		HistoryTimeout: historyTimeout,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{
		dialer: &fakeDialer{},
		clock:  &fakeClock{},
		sender: &fakeSender{},
	}
	h.s = New(cfg, h.dialer, h.sender, WithClock(h.clock))
	t.Cleanup(h.s.Close)
	return h
}

func waitFor(t *testing.T, cond func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 2*time.Millisecond, msgAndArgs...)
}

// open connect and wait until the socket is up
func (h *harness) open(t *testing.T) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	h.dialer.enqueue(dialResult{conn: conn})
	h.s.Connect()
	waitFor(t, func() bool { return h.s.State().Status == domain.StatusConnected }, "never connected")
	return conn
}

// reconnectTimer the single pending reconnect timer
func (h *harness) reconnectTimer(t *testing.T) *fakeTimer {
	t.Helper()
	var tm *fakeTimer
	waitFor(t, func() bool {
		p := h.clock.pendingExcept(historyTimeout)
		if len(p) == 1 {
			tm = p[0]
			return true
		}
		return false
	}, "no reconnect scheduled")
	return tm
}

func (h *harness) contents() []string {
	var out []string
	for _, m := range h.s.Messages() {
		out = append(out, m.Content)
	}
	return out
}

func messageJSON(t *testing.T, sender, content string, at time.Time) string {
	t.Helper()
	b, err := json.Marshal(domain.ChatMessage{RoomID: "room-1", SenderID: sender, Content: content, CreatedAt: at})
	require.NoError(t, err)
	return string(b)
}

func newMessageFrame(t *testing.T, sender, content string, at time.Time) string {
	return `{"type":"new_message","message":` + messageJSON(t, sender, content, at) + `}`
}

func TestSession_ConnectRequestsHistory(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)

	assert.Equal(t, []string{"ws://chat.test/ws/chat/room-1/?token=tok"}, h.dialer.URLs())
	waitFor(t, func() bool { return len(conn.Writes()) == 1 })
	assert.JSONEq(t, `{"type":"get_chat_history","room":"room-1"}`, conn.Writes()[0])

	st := h.s.State()
	assert.Equal(t, domain.StatusConnected, st.Status)
	assert.False(t, st.IsConnecting)
	assert.True(t, st.IsLoadingHistory)
	assert.Zero(t, st.ReconnectAttempt)
	assert.Len(t, h.clock.pending(historyTimeout), 1)
}

func TestSession_ConnectWhileConnectingIsNoop(t *testing.T) {
	h := newHarness(t)
	h.dialer.enqueue(dialResult{block: true})

	h.s.Connect()
	waitFor(t, func() bool { return h.dialer.Dials() == 1 })
	assert.True(t, h.s.State().IsConnecting)

	h.s.Connect()
	h.s.Retry()
	assert.Equal(t, 1, h.dialer.Dials())
}

func TestSession_HistoryBatchReplaces(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)

	conn.push(`[` + messageJSON(t, "a", "one", t0) + `,` + messageJSON(t, "b", "two", t0.Add(time.Minute)) + `]`)
	waitFor(t, func() bool { return len(h.s.Messages()) == 2 })
	assert.Equal(t, []string{"one", "two"}, h.contents())
	assert.False(t, h.s.State().IsLoadingHistory)
	assert.Empty(t, h.clock.pending(historyTimeout))

	conn.push(`{"type":"chat_history","messages":[` + messageJSON(t, "c", "three", t0) + `]}`)
	waitFor(t, func() bool { return len(h.s.Messages()) == 1 })
	assert.Equal(t, []string{"three"}, h.contents())

	conn.push(`{"messages":[]}`)
	waitFor(t, func() bool { return len(h.s.Messages()) == 0 })
}

func TestSession_DuplicateEchoDropped(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)

	conn.push(`[` + messageJSON(t, "alice", "hi", t0) + `]`)
	waitFor(t, func() bool { return len(h.s.Messages()) == 1 })

	conn.push(newMessageFrame(t, "alice", "hi", t0.Add(500*time.Millisecond)))
	conn.push(newMessageFrame(t, "bob", "yo", t0.Add(2*time.Second)))

	waitFor(t, func() bool { return len(h.s.Messages()) == 2 })
	assert.Equal(t, []string{"hi", "yo"}, h.contents())
}

func TestSession_BareMessageAppended(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)

	conn.push(messageJSON(t, "alice", "hello", t0))
	waitFor(t, func() bool { return len(h.s.Messages()) == 1 })
	assert.Equal(t, "alice", h.s.Messages()[0].SenderID)
}

func TestSession_ForeignRoomAndGarbageIgnored(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)

	conn.push(`{"type":"new_message","message":{"room_id":"room-2","sender_id":"x","content":"elsewhere","created_at":"2024-05-01T12:00:00Z"}}`)
	conn.push(`not json`)
	conn.push(`{"type":"error","error":"boom"}`)
	conn.push(`{}`)
	conn.push(newMessageFrame(t, "alice", "here", t0))

	waitFor(t, func() bool { return len(h.s.Messages()) == 1 })
	assert.Equal(t, []string{"here"}, h.contents())
	assert.Equal(t, domain.StatusConnected, h.s.State().Status)
}

func TestSession_HistoryTimeoutStopsLoading(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	timers := h.clock.pending(historyTimeout)
	require.Len(t, timers, 1)
	h.clock.fire(timers[0])

	st := h.s.State()
	assert.False(t, st.IsLoadingHistory)
	assert.Equal(t, domain.StatusConnected, st.Status)
	assert.Empty(t, h.s.Messages())
}

func TestSession_ReconnectBackoffThenGiveUp(t *testing.T) {
	h := newHarness(t)
	h.s.Connect()

	var delays []time.Duration
	for i := 0; i < 5; i++ {
		tm := h.reconnectTimer(t)
		delays = append(delays, tm.d)
		h.clock.fire(tm)
	}

	waitFor(t, func() bool { return h.s.State().CanRetry }, "never gave up")
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, delays)

	st := h.s.State()
	assert.Equal(t, domain.StatusDisconnected, st.Status)
	assert.Equal(t, 5, st.ReconnectAttempt)
	assert.Equal(t, 6, h.dialer.Dials())
	assert.Empty(t, h.clock.pendingExcept(historyTimeout))
}

func TestSession_ReconnectDelayCapped(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.MaxAttempts = 8
		c.MaxDelay = 30 * time.Second
	})
	h.s.Connect()

	var last time.Duration
	for i := 0; i < 7; i++ {
		tm := h.reconnectTimer(t)
		last = tm.d
		h.clock.fire(tm)
	}
	assert.Equal(t, 30*time.Second, last)
}

func TestSession_NormalCloseDoesNotReconnect(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)

	conn.serverClose(websocket.CloseNormalClosure)
	waitFor(t, func() bool { return h.s.State().Status == domain.StatusDisconnected })

	assert.Empty(t, h.clock.pendingExcept(historyTimeout))
	assert.Empty(t, h.clock.pending(historyTimeout))
	assert.False(t, h.s.State().CanRetry)
	assert.Equal(t, 1, h.dialer.Dials())
}

func TestSession_AbnormalCloseReconnects(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)
	conn.push(`[` + messageJSON(t, "a", "kept", t0) + `]`)
	waitFor(t, func() bool { return len(h.s.Messages()) == 1 })

	conn.serverClose(websocket.CloseInternalServerErr)
	tm := h.reconnectTimer(t)
	assert.Equal(t, time.Second, tm.d)
	assert.Equal(t, []string{"kept"}, h.contents())

	next := newFakeConn()
	h.dialer.enqueue(dialResult{conn: next})
	h.clock.fire(tm)

	waitFor(t, func() bool { return h.s.State().Status == domain.StatusConnected })
	assert.Zero(t, h.s.State().ReconnectAttempt)
	waitFor(t, func() bool { return len(next.Writes()) == 1 })
	assert.True(t, conn.Closed())
}

func TestSession_DisconnectInvalidatesCallbacks(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)
	conn.push(`[` + messageJSON(t, "a", "before", t0) + `]`)
	waitFor(t, func() bool { return len(h.s.Messages()) == 1 })

	h.s.mu.Lock()
	oldGen := h.s.gen
	h.s.mu.Unlock()

	h.s.Disconnect()
	assert.Equal(t, []int{websocket.CloseNormalClosure}, conn.CloseCodes())
	assert.True(t, conn.Closed())

	// late socket events of the old connection
	h.s.onFrame(oldGen, []byte(newMessageFrame(t, "a", "after", t0.Add(time.Hour))))
	h.s.onClose(oldGen, conn, websocket.CloseAbnormalClosure, errors.New("reset"))
	h.s.onDialError(oldGen, errors.New("refused"))
	h.s.onHistoryTimeout(oldGen)
	h.s.onReconnectTimer(oldGen)

	st := h.s.State()
	assert.Equal(t, domain.StatusDisconnected, st.Status)
	assert.False(t, st.IsLoadingHistory)
	assert.Zero(t, st.ReconnectAttempt)
	assert.Equal(t, []string{"before"}, h.contents())
	assert.Empty(t, h.clock.pendingExcept(historyTimeout))
	assert.Empty(t, h.clock.pending(historyTimeout))
	assert.Equal(t, 1, h.dialer.Dials())
}

func TestSession_DisconnectCancelsReconnect(t *testing.T) {
	h := newHarness(t)
	conn := h.open(t)
	conn.serverClose(websocket.CloseGoingAway)
	tm := h.reconnectTimer(t)

	h.s.Disconnect()
	assert.False(t, tm.Stop(), "reconnect timer still armed")

	tm.f()
	assert.Equal(t, 1, h.dialer.Dials())
	assert.Equal(t, domain.StatusDisconnected, h.s.State().Status)
}

func TestSession_DisconnectDuringDial(t *testing.T) {
	h := newHarness(t)
	h.dialer.enqueue(dialResult{block: true})

	h.s.Connect()
	waitFor(t, func() bool { return h.dialer.Dials() == 1 })
	h.s.Close()

	st := h.s.State()
	assert.Equal(t, domain.StatusDisconnected, st.Status)
	assert.False(t, st.CanRetry)
	assert.Empty(t, h.clock.pendingExcept(historyTimeout))
}

func TestSession_RetryAfterGivingUp(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 1 })
	h.s.Connect()
	h.clock.fire(h.reconnectTimer(t))
	waitFor(t, func() bool { return h.s.State().CanRetry })
	assert.Equal(t, 1, h.s.State().ReconnectAttempt)
	assert.Equal(t, 1, h.s.State().MaxAttempts)

	conn := newFakeConn()
	h.dialer.enqueue(dialResult{conn: conn})
	h.s.Retry()

	waitFor(t, func() bool { return h.s.State().Status == domain.StatusConnected })
	st := h.s.State()
	assert.False(t, st.CanRetry)
	assert.Zero(t, st.ReconnectAttempt)
}

func TestSession_InvalidEndpointNeedsRetry(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Host = "" })
	h.s.Connect()

	st := h.s.State()
	assert.Equal(t, domain.StatusDisconnected, st.Status)
	assert.True(t, st.CanRetry)
	assert.Zero(t, h.dialer.Dials())
	assert.Empty(t, h.clock.pendingExcept(historyTimeout))
}

func TestSession_DialPanicIsAFailedDial(t *testing.T) {
	h := newHarness(t)
	h.dialer.enqueue(dialResult{panic: true})

	h.s.Connect()
	tm := h.reconnectTimer(t)
	assert.Equal(t, time.Second, tm.d)
	assert.Equal(t, domain.StatusDisconnected, h.s.State().Status)
}

func TestSession_IsMine(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.s.IsMine(domain.ChatMessage{SenderID: "me"}))
	assert.False(t, h.s.IsMine(domain.ChatMessage{SenderID: "other"}))

	jwt, err := token.GenerateJWT("member-9", token.RoleBuyer, "test")
	require.NoError(t, err)
	fromToken := New(Config{Host: "h", RoomID: "r", Token: jwt}, &fakeDialer{}, &fakeSender{})
	assert.Equal(t, "member-9", fromToken.SelfID())
	assert.True(t, fromToken.IsMine(domain.ChatMessage{SenderID: "member-9"}))

	anonymous := New(Config{Host: "h", RoomID: "r", Token: "not-a-jwt"}, &fakeDialer{}, &fakeSender{})
	assert.False(t, anonymous.IsMine(domain.ChatMessage{SenderID: ""}))
}

func TestSession_SendMessageDoesNotTouchList(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	require.NoError(t, h.s.SendMessage(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, h.sender.Sent())
	assert.Equal(t, []string{"room-1"}, h.sender.rooms)
	assert.Empty(t, h.s.Messages())

	h.sender.err = errors.New("503")
	assert.Error(t, h.s.SendMessage(context.Background(), "again"))
	assert.Empty(t, h.s.Messages())
}

func TestSession_OnUpdate(t *testing.T) {
	var calls atomic.Int32
	var last atomic.Value

	dialer := &fakeDialer{}
	conn := newFakeConn()
	dialer.enqueue(dialResult{conn: conn})
	s := New(Config{Host: "h", RoomID: "room-1", HistoryTimeout: historyTimeout}, dialer, &fakeSender{},
		WithClock(&fakeClock{}),
		WithOnUpdate(func(st State) {
			calls.Add(1)
			last.Store(st)
		}))
	t.Cleanup(s.Close)

	s.Connect()
	waitFor(t, func() bool {
		st, ok := last.Load().(State)
		return ok && st.Status == domain.StatusConnected
	})
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestSession_CloseLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dialer := &fakeDialer{}
	s := New(Config{Host: "h", RoomID: "room-1"}, dialer, &fakeSender{}, WithClock(&fakeClock{}))

	conn := newFakeConn()
	dialer.enqueue(dialResult{conn: conn})
	s.Connect()
	require.Eventually(t, func() bool { return s.State().Status == domain.StatusConnected }, time.Second, time.Millisecond)

	s.Close()
	assert.True(t, conn.Closed())
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.ChatClient{Scheme: "wss", Host: "chat.test"}, "room-7")

	assert.Equal(t, "room-7", cfg.RoomID)
	assert.Equal(t, "wss", cfg.Scheme)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 3*time.Second, cfg.HistoryTimeout)
}
