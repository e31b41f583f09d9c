package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes the session cares about
const (
	CloseNormalClosure   = websocket.CloseNormalClosure
	CloseAbnormalClosure = websocket.CloseAbnormalClosure
)

// Conn the part of *websocket.Conn the chat session uses
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer open a socket to url
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// ErrInvalidEndpoint missing host or room
var ErrInvalidEndpoint = errors.New("invalid chat endpoint")

// RoomURL {scheme}://{host}/ws/chat/{roomID}/?token={token}
func RoomURL(scheme, host, roomID, token string) (string, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		scheme = "ws"
	}
	if scheme != "ws" && scheme != "wss" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, scheme)
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if strings.TrimSpace(roomID) == "" {
		return "", fmt.Errorf("%w: empty room", ErrInvalidEndpoint)
	}

	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   "/ws/chat/" + roomID + "/",
	}
	if token != "" {
		u.RawQuery = url.Values{"token": []string{token}}.Encode()
	}
	return u.String(), nil
}

// WSDialer gorilla websocket Dialer
type WSDialer struct {
	dialer *websocket.Dialer
}

// NewWSDialer handshakeTimeout <= 0 uses gorilla's default
func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	return &WSDialer{dialer: &d}
}

// Dial open the socket
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", redact(url), resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", redact(url), err)
	}
	return conn, nil
}

// CloseCode close code carried by a read error, 1006 when the socket just dropped
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormalClosure
}

// CloseNormally send a 1000 close frame and close the socket
func CloseNormally(conn Conn, reason string) error {
	msg := websocket.FormatCloseMessage(CloseNormalClosure, reason)
	werr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	cerr := conn.Close()
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return werr
	}
	return cerr
}

// redact drop the token from logs
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery != "" {
		u.RawQuery = "token=REDACTED"
	}
	return u.String()
}
