package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
	"github.com/coregx/peerchat/protocol"
)

const maxFrameSize = 64 * 1024

var (
	errChannelClosed = errors.New("live channel closed")
	errSendBuffer    = errors.New("live channel send buffer full")
)

// WSConfig tunes live channels.
type WSConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func (c WSConfig) withDefaults() WSConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// WSHandler upgrades authenticated requests to live channels.
type WSHandler struct {
	gateway  *peerchat.Gateway
	logger   peerchat.Logger
	cfg      WSConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates the live channel endpoint.
func NewWSHandler(gateway *peerchat.Gateway, cfg WSConfig, logger peerchat.Logger) *WSHandler {
	return &WSHandler{
		gateway: gateway,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// wsChannel is a peerchat.Channel backed by one WebSocket connection.
// All writes go through the send queue and a single writer goroutine.
type wsChannel struct {
	userID string
	conn   *websocket.Conn
	send   chan protocol.Frame
	done   chan struct{}
	once   sync.Once
}

// Push queues msg for the writer. It never blocks on the network.
func (c *wsChannel) Push(ctx context.Context, msg model.Message) error {
	return c.enqueue(ctx, protocol.NewPush(msg))
}

func (c *wsChannel) enqueue(ctx context.Context, f protocol.Frame) error {
	select {
	case <-c.done:
		return errChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errChannelClosed
	default:
		return errSendBuffer
	}
}

func (c *wsChannel) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

// ServeHTTP handles GET /api/v1/chat/ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		respondError(w, peerchat.ErrAuthenticationMissing)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: user=%s: %v", userID, err)
		return
	}

	ch := &wsChannel{
		userID: userID,
		conn:   conn,
		send:   make(chan protocol.Frame, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	h.gateway.Register(userID, ch)
	h.logger.Debugf("live channel opened: user=%s", userID)

	go h.writePump(ch)
	h.readPump(r.Context(), ch)

	h.gateway.Deregister(userID, ch)
	ch.close()
	h.logger.Debugf("live channel closed: user=%s", userID)
}

func (h *WSHandler) readPump(ctx context.Context, ch *wsChannel) {
	pongWait := 2 * h.cfg.PingInterval
	ch.conn.SetReadLimit(maxFrameSize)
	_ = ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The upgrade request context ends when the handler returns, so sends
	// triggered from this loop run on their own context.
	sendCtx := context.WithoutCancel(ctx)

	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("live channel read failed: user=%s: %v", ch.userID, err)
			}
			return
		}
		_ = ch.conn.SetReadDeadline(time.Now().Add(pongWait))

		f, err := protocol.Decode(data)
		if err != nil {
			if f.Type == protocol.TypeSend && f.Token != "" {
				h.reply(ch, protocol.NewNack(f.Token, err))
			} else {
				h.reply(ch, protocol.NewError(err))
			}
			continue
		}
		if f.Type != protocol.TypeSend {
			h.reply(ch, protocol.NewError(peerchat.NewError(peerchat.ErrCodeValidation, "only send frames are accepted")))
			continue
		}

		msg, err := h.gateway.Send(sendCtx, ch.userID, f.To, f.Text)
		if err != nil {
			h.reply(ch, protocol.NewNack(f.Token, err))
			continue
		}
		h.reply(ch, protocol.NewAck(f.Token, msg))
	}
}

// reply queues a response for the sender. A client that cannot keep up with
// its own acks is disconnected.
func (h *WSHandler) reply(ch *wsChannel, f protocol.Frame) {
	if err := ch.enqueue(context.Background(), f); err != nil {
		h.logger.Warnf("dropping live channel: user=%s: %v", ch.userID, err)
		ch.close()
	}
}

func (h *WSHandler) writePump(ch *wsChannel) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		ch.close()
	}()

	for {
		select {
		case <-ch.done:
			return
		case f := <-ch.send:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ch.conn.WriteJSON(f); err != nil {
				h.logger.Warnf("live channel write failed: user=%s: %v", ch.userID, err)
				return
			}
		case <-ticker.C:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ch.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
