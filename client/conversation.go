// Package client implements the per-conversation reconciler used by chat
// front ends.
//
// A Conversation merges three producers into one View: the mount-time history
// fetch, the live channel (pushes and send acknowledgements) and a fallback
// poller that runs while the live channel is down. Sends show a pending
// placeholder immediately and are confirmed by whichever producer sees the
// canonical record first.
package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
	"github.com/coregx/peerchat/protocol"
	"github.com/coregx/peerchat/retry"
)

// State is the live-channel state of a Conversation.
type State int

const (
	// StateDisconnected means no live channel; sends use the Transport and the poller runs.
	StateDisconnected State = iota
	// StateConnecting means a dial is in progress.
	StateConnecting
	// StateConnected means sends and pushes flow over the live channel.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conversation is the reconciled view of the chat between the local user and one peer.
//
// Thread safety: Safe for concurrent use.
type Conversation struct {
	self, peer string

	transport    Transport
	dialer       Dialer
	logger       peerchat.Logger
	pollInterval time.Duration
	ackTimeout   time.Duration
	reconnect    retry.Strategy
	onChange     func()
	newToken     func() string

	mu      sync.Mutex
	view    *View
	state   State
	conn    LiveConn
	waiters map[string]chan protocol.Frame
	opened  bool
	closed  bool
	runCtx  context.Context
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

// New creates a Conversation between self and peer. Nothing runs until Open.
//
// Example:
//
//	conv, err := client.New("alice", "bob", client.NewHTTPTransport(url, token, nil),
//	    client.WithDialer(dialer),
//	    client.WithOnChange(redraw),
//	)
//	conv.Open(ctx)
//	defer conv.Close()
func New(self, peer string, transport Transport, opts ...Option) (*Conversation, error) {
	self, peer = strings.TrimSpace(self), strings.TrimSpace(peer)
	if self == "" {
		return nil, peerchat.ErrAuthenticationMissing
	}
	if peer == "" {
		return nil, peerchat.NewError(peerchat.ErrCodeValidation, "peer is required")
	}
	if transport == nil {
		return nil, peerchat.NewError(peerchat.ErrCodeConfiguration, "transport is required")
	}

	c := &Conversation{
		self:         self,
		peer:         peer,
		transport:    transport,
		logger:       &peerchat.NoopLogger{},
		pollInterval: 5 * time.Second,
		ackTimeout:   10 * time.Second,
		reconnect:    retry.DefaultStrategy(),
		newToken:     uuid.NewString,
		view:         NewView(),
		waiters:      make(map[string]chan protocol.Frame),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeConfiguration, "failed to apply conversation option", err)
		}
	}

	return c, nil
}

// Open starts the mount-time history fetch, the live channel (when a Dialer
// is configured) and the fallback poller. They stop when ctx is cancelled or
// Close is called. Open may be called only once.
func (c *Conversation) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return peerchat.NewError(peerchat.ErrCodeConfiguration, "conversation already open")
	}
	c.opened = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.runCtx = ctx
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.refresh(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.pollLoop(ctx)
	}()

	if c.dialer != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.liveLoop(ctx)
		}()
	}

	return nil
}

// Close tears down the live channel and the poller and waits for them to exit.
// Results of requests still in flight are discarded. Close is idempotent.
func (c *Conversation) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.failWaitersLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	return nil
}

// State returns the live-channel state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Entries returns the current display sequence.
func (c *Conversation) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Entries()
}

// Send shows a pending placeholder and sends text to the peer, over the live
// channel when connected and through the Transport otherwise.
//
// On success the placeholder has been replaced by the returned canonical
// message. On failure it has been removed and the error tells the caller
// whether resubmitting makes sense (see IsRetryable). Send never retries.
func (c *Conversation) Send(ctx context.Context, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, peerchat.NewError(peerchat.ErrCodeValidation, "text is required")
	}

	token := c.newToken()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.Message{}, ErrClosed
	}
	c.view.AddPending(c.self, c.peer, text, token)
	conn := c.conn
	var wait chan protocol.Frame
	if c.state == StateConnected && conn != nil {
		wait = make(chan protocol.Frame, 1)
		c.waiters[token] = wait
	}
	c.mu.Unlock()
	c.changed()

	if wait != nil {
		return c.sendLive(ctx, conn, token, text, wait)
	}
	return c.sendTransport(ctx, token, text)
}

func (c *Conversation) sendLive(ctx context.Context, conn LiveConn, token, text string, wait chan protocol.Frame) (model.Message, error) {
	if err := conn.Send(protocol.NewSend(token, c.peer, text)); err != nil {
		c.dropWaiter(token)
		c.apply(func(v *View) bool { return v.RemovePending(token) })
		return model.Message{}, peerchat.NewErrorWithCause(ErrCodeChannelLost, "failed to write send frame", err)
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	select {
	case f, ok := <-wait:
		if !ok {
			c.apply(func(v *View) bool { return v.RemovePending(token) })
			return model.Message{}, ErrChannelLost
		}
		if f.Succeeded() {
			msg := *f.Message
			c.apply(func(v *View) bool { return v.ConfirmToken(token, msg) })
			return msg, nil
		}
		c.apply(func(v *View) bool { return v.RemovePending(token) })
		if f.Error != nil {
			return model.Message{}, f.Error.Err()
		}
		return model.Message{}, peerchat.NewError(peerchat.ErrCodeStorage, "send rejected")

	case <-timer.C:
		c.abandon(token)
		c.logger.Warnf("no ack for %s within %v", token, c.ackTimeout)
		return model.Message{}, ErrAckTimeout

	case <-ctx.Done():
		c.abandon(token)
		return model.Message{}, ctx.Err()
	}
}

// abandon stops waiting for token's ack. The send may still have been
// persisted: a late ack is merged by readLoop, and a history resync covers
// an ack that never arrives.
func (c *Conversation) abandon(token string) {
	c.dropWaiter(token)
	c.apply(func(v *View) bool { return v.RemovePending(token) })
	c.resync()
}

// resync runs one history merge in the background while the conversation is open.
func (c *Conversation) resync() {
	c.mu.Lock()
	if c.closed || c.runCtx == nil {
		c.mu.Unlock()
		return
	}
	ctx := c.runCtx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.refresh(ctx)
	}()
}

func (c *Conversation) sendTransport(ctx context.Context, token, text string) (model.Message, error) {
	msg, err := c.transport.Send(ctx, c.peer, text)
	if err != nil {
		c.apply(func(v *View) bool { return v.RemovePending(token) })
		return model.Message{}, err
	}

	c.apply(func(v *View) bool { return v.ConfirmContent(msg) })
	return msg, nil
}

// refresh fetches the full history and merges it.
func (c *Conversation) refresh(ctx context.Context) {
	msgs, err := c.transport.History(ctx, c.peer, nil)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warnf("history fetch failed: peer=%s: %v", c.peer, err)
		}
		return
	}

	mine := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Involves(c.self, c.peer) {
			mine = append(mine, m)
		}
	}
	c.apply(func(v *View) bool { return v.MergeHistory(mine) })
}

func (c *Conversation) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateConnected {
				c.refresh(ctx)
			}
		}
	}
}

func (c *Conversation) liveLoop(ctx context.Context) {
	attempt := 0
	for {
		c.setState(StateConnecting)

		conn, err := c.dialer.Dial(ctx)
		if err == nil {
			attempt = 0
			if !c.attach(conn) {
				_ = conn.Close()
				return
			}
			c.logger.Infof("live channel connected: peer=%s", c.peer)

			// Pushes sent while we were down are only recoverable through history.
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.refresh(ctx)
			}()

			c.readLoop(conn)
			c.detach(conn)
		} else if ctx.Err() == nil {
			c.logger.Warnf("live channel dial failed (attempt %d): %v", attempt+1, err)
		}

		if ctx.Err() != nil {
			return
		}
		c.setState(StateDisconnected)

		if !c.reconnect.IsRetryable(attempt) {
			c.logger.Errorf("giving up on live channel after %d attempts, polling only", attempt)
			return
		}
		if err := c.reconnect.Wait(ctx, attempt); err != nil {
			return
		}
		attempt++
	}
}

func (c *Conversation) readLoop(conn LiveConn) {
	for {
		f, err := conn.Receive()
		if err != nil {
			c.logger.Debugf("live channel closed: %v", err)
			return
		}

		switch f.Type {
		case protocol.TypeMessage:
			if f.Message == nil || !f.Message.Involves(c.self, c.peer) {
				continue
			}
			msg := *f.Message
			c.apply(func(v *View) bool { return v.MergePush(msg) })

		case protocol.TypeAck:
			c.mu.Lock()
			wait, ok := c.waiters[f.Token]
			delete(c.waiters, f.Token)
			c.mu.Unlock()
			if ok {
				wait <- f
				continue
			}
			// The sender gave up waiting, but the message was stored.
			if f.Succeeded() && f.Message.Involves(c.self, c.peer) {
				msg := *f.Message
				c.apply(func(v *View) bool { return v.MergePush(msg) })
			}

		case protocol.TypeError:
			c.logger.Warnf("server rejected frame: %v", f.Error.Err())
		}
	}
}

// attach installs conn as the live channel. It fails once the conversation is closed.
func (c *Conversation) attach(conn LiveConn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	c.changed()
	return true
}

// detach clears conn if it is still current and fails its in-flight sends.
func (c *Conversation) detach(conn LiveConn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.failWaitersLocked()
	c.mu.Unlock()

	_ = conn.Close()
	c.changed()
}

func (c *Conversation) failWaitersLocked() {
	for token, wait := range c.waiters {
		close(wait)
		delete(c.waiters, token)
	}
}

func (c *Conversation) dropWaiter(token string) {
	c.mu.Lock()
	delete(c.waiters, token)
	c.mu.Unlock()
}

func (c *Conversation) setState(s State) {
	c.mu.Lock()
	if c.closed || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.changed()
}

// apply runs fn against the view unless the conversation is closed.
func (c *Conversation) apply(fn func(v *View) bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	changed := fn(c.view)
	c.mu.Unlock()

	if changed {
		c.changed()
	}
}

func (c *Conversation) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
