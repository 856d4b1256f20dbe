package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/protocol"
)

// LiveConn is an open live channel.
//
// Send may be called concurrently with Receive. Close unblocks a pending Receive.
type LiveConn interface {
	Send(f protocol.Frame) error
	Receive() (protocol.Frame, error)
	Close() error
}

// Dialer opens live channels.
type Dialer interface {
	Dial(ctx context.Context) (LiveConn, error)
}

// WebSocketDialer dials the server's WebSocket endpoint with gorilla/websocket.
type WebSocketDialer struct {
	url          string
	token        string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
}

// NewWebSocketDialer creates a dialer for the server at baseURL
// (http, https, ws or wss scheme) authenticating with a bearer token.
func NewWebSocketDialer(baseURL, token string) (*WebSocketDialer, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeConfiguration, "invalid server url", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, peerchat.NewError(peerchat.ErrCodeConfiguration, "unsupported scheme "+u.Scheme)
	}
	u.Path += "/api/v1/chat/ws"

	return &WebSocketDialer{
		url:          u.String(),
		token:        token,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		writeTimeout: 10 * time.Second,
	}, nil
}

// Dial opens a new live channel.
func (d *WebSocketDialer) Dial(ctx context.Context) (LiveConn, error) {
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}

	conn, resp, err := d.dialer.DialContext(ctx, d.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, peerchat.ErrAuthenticationMissing
		}
		return nil, peerchat.NewErrorWithCause(ErrCodeTransport, "websocket dial failed", err)
	}

	return &wsConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex // serializes writers
}

func (c *wsConn) Send(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(f)
}

// Receive skips frames that fail to decode.
func (c *wsConn) Receive() (protocol.Frame, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return protocol.Frame{}, err
		}
		f, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		return f, nil
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
