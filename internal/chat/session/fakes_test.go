package session

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/internal/chat/transport"

	"github.com/gorilla/websocket"
)

type inbound struct {
	data []byte
	err  error
}

// fakeConn in-memory socket, the test plays the server
type fakeConn struct {
	in        chan inbound
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	writes     [][]byte
	closeCodes []int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan inbound, 32),
		done: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.done:
		return 0, nil, errors.New("use of closed network connection")
	case m := <-c.in:
		if m.err != nil {
			return 0, nil, m.err
		}
		return websocket.TextMessage, m.data, nil
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.mu.Lock()
		c.closeCodes = append(c.closeCodes, int(binary.BigEndian.Uint16(data)))
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(frame string) {
	c.in <- inbound{data: []byte(frame)}
}

func (c *fakeConn) serverClose(code int) {
	c.in <- inbound{err: &websocket.CloseError{Code: code}}
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.writes))
	for _, w := range c.writes {
		out = append(out, string(w))
	}
	return out
}

func (c *fakeConn) CloseCodes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closeCodes...)
}

func (c *fakeConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

type dialResult struct {
	conn  *fakeConn
	err   error
	block bool
	panic bool
}

// fakeDialer hands out queued results, refuses once the queue is empty
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	urls    []string
}

func (d *fakeDialer) enqueue(r dialResult) {
	d.mu.Lock()
	d.results = append(d.results, r)
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	if len(d.results) == 0 {
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	r := d.results[0]
	d.results = d.results[1:]
	d.mu.Unlock()

	switch {
	case r.panic:
		panic("dialer exploded")
	case r.block:
		<-ctx.Done()
		return nil, ctx.Err()
	case r.conn == nil:
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock timers only fire when the test says so
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending active timers with duration d
func (c *fakeClock) pending(d time.Duration) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.d == d {
			out = append(out, t)
		}
	}
	return out
}

// pendingExcept active timers whose duration is not d
func (c *fakeClock) pendingExcept(d time.Duration) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.d != d {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	if t.stopped || t.fired {
		c.mu.Unlock()
		return
	}
	t.fired = true
	c.mu.Unlock()
	t.f()
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	rooms []string
	err   error
}

func (s *fakeSender) ContinueChat(_ context.Context, roomID, content string, _ *domain.ProductRef) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, content)
	s.rooms = append(s.rooms, roomID)
	if s.err != nil {
		return domain.ChatMessage{}, s.err
	}
	return domain.ChatMessage{RoomID: roomID, Content: content}, nil
}

func (s *fakeSender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}
