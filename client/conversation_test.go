package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
	"github.com/coregx/peerchat/protocol"
	"github.com/coregx/peerchat/retry"
)

// fakeServer is a tiny in-memory backend shared by fakeTransport and fakeConn.
type fakeServer struct {
	mu      sync.Mutex
	self    string
	msgs    []model.Message
	sendErr error
	histErr error
	release chan struct{} // when set, transport sends block until closed
}

func (s *fakeServer) persist(from, to, text string) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := model.NewMessage(from, to, text)
	m.ID = int64(len(s.msgs) + 1)
	m.CreatedAt = t0.Add(time.Duration(m.ID) * time.Millisecond)
	s.msgs = append(s.msgs, m)
	return m
}

func (s *fakeServer) history() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.msgs...)
}

type fakeTransport struct {
	server *fakeServer
}

func (t *fakeTransport) Send(ctx context.Context, to, text string) (model.Message, error) {
	if t.server.release != nil {
		<-t.server.release
	}
	if t.server.sendErr != nil {
		return model.Message{}, t.server.sendErr
	}
	return t.server.persist(t.server.self, to, text), nil
}

func (t *fakeTransport) History(_ context.Context, _ string, _ *time.Time) ([]model.Message, error) {
	if t.server.histErr != nil {
		return nil, t.server.histErr
	}
	return t.server.history(), nil
}

// fakeConn acknowledges send frames through the shared server unless ack is nil.
type fakeConn struct {
	server *fakeServer
	ack    func(f protocol.Frame) *protocol.Frame

	in     chan protocol.Frame
	done   chan struct{}
	closed sync.Once
}

func newFakeConn(server *fakeServer) *fakeConn {
	c := &fakeConn{
		server: server,
		in:     make(chan protocol.Frame, 16),
		done:   make(chan struct{}),
	}
	c.ack = func(f protocol.Frame) *protocol.Frame {
		ack := protocol.NewAck(f.Token, server.persist(server.self, f.To, f.Text))
		return &ack
	}
	return c
}

func (c *fakeConn) Send(f protocol.Frame) error {
	select {
	case <-c.done:
		return errors.New("closed")
	default:
	}
	if c.ack != nil {
		if reply := c.ack(f); reply != nil {
			c.in <- *reply
		}
	}
	return nil
}

func (c *fakeConn) Receive() (protocol.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.done:
		return protocol.Frame{}, errors.New("closed")
	}
}

func (c *fakeConn) Close() error {
	c.closed.Do(func() { close(c.done) })
	return nil
}

// fakeDialer hands out conns in order, failing while failures > 0.
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	failures int
	dials    int
}

func (d *fakeDialer) Dial(ctx context.Context) (LiveConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no more conns")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func fastReconnect() Option {
	return WithReconnectStrategy(retry.Strategy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2})
}

func newTestConversation(t *testing.T, server *fakeServer, opts ...Option) *Conversation {
	t.Helper()

	var n int
	var mu sync.Mutex
	tokens := withTokens(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "tok-" + strconv.Itoa(n)
	})

	opts = append([]Option{tokens, WithPollInterval(time.Hour), fastReconnect()}, opts...)
	conv, err := New(server.self, "bob", &fakeTransport{server: server}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conv.Close() })
	return conv
}

func openConnected(t *testing.T, conv *Conversation) {
	t.Helper()
	require.NoError(t, conv.Open(context.Background()))
	require.Eventually(t, func() bool { return conv.State() == StateConnected }, time.Second, time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	tr := &fakeTransport{server: &fakeServer{}}

	_, err := New("", "bob", tr)
	assert.True(t, peerchat.IsAuthenticationMissing(err))

	_, err = New("alice", " ", tr)
	assert.True(t, peerchat.IsValidation(err))

	_, err = New("alice", "bob", nil)
	assert.Equal(t, peerchat.ErrCodeConfiguration, peerchat.CodeOf(err))

	_, err = New("alice", "bob", tr, WithAckTimeout(0))
	assert.Equal(t, peerchat.ErrCodeConfiguration, peerchat.CodeOf(err))
}

func TestConversation_MountFetch(t *testing.T) {
	server := &fakeServer{self: "alice"}
	server.persist("bob", "alice", "hello")
	server.persist("alice", "bob", "hi")
	server.persist("alice", "carol", "wrong pair")

	conv := newTestConversation(t, server)
	require.NoError(t, conv.Open(context.Background()))

	require.Eventually(t, func() bool { return len(conv.Entries()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"hello", "hi"}, texts(conv.Entries()))
	assert.Equal(t, StateDisconnected, conv.State())
}

// Scenario C over the transport: one placeholder, then exactly one canonical entry.
func TestConversation_SendWhileDisconnected(t *testing.T) {
	server := &fakeServer{self: "alice", release: make(chan struct{})}
	conv := newTestConversation(t, server)

	done := make(chan model.Message)
	go func() {
		msg, err := conv.Send(context.Background(), "  hi  ")
		assert.NoError(t, err)
		done <- msg
	}()

	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, time.Millisecond)
	entries := conv.Entries()
	assert.True(t, entries[0].Pending())
	assert.Equal(t, "hi", entries[0].Message.Text)

	close(server.release)
	msg := <-done

	entries = conv.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending())
	assert.Equal(t, msg.ID, entries[0].Message.ID)
}

func TestConversation_SendFailureRemovesPlaceholder(t *testing.T) {
	server := &fakeServer{self: "alice", sendErr: peerchat.NewError(peerchat.ErrCodeStorage, "database down")}
	conv := newTestConversation(t, server)

	_, err := conv.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, peerchat.IsStorage(err))
	assert.True(t, IsRetryable(err))
	assert.Empty(t, conv.Entries())
}

func TestConversation_SendEmptyText(t *testing.T) {
	conv := newTestConversation(t, &fakeServer{self: "alice"})

	_, err := conv.Send(context.Background(), "   ")
	assert.True(t, peerchat.IsValidation(err))
	assert.False(t, IsRetryable(err))
	assert.Empty(t, conv.Entries())
}

// Scenario C over the live channel.
func TestConversation_SendWhileConnected(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	conv := newTestConversation(t, server, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))
	openConnected(t, conv)

	msg, err := conv.Send(context.Background(), "hey")
	require.NoError(t, err)
	assert.Positive(t, msg.ID)

	entries := conv.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending())
	assert.Equal(t, msg.ID, entries[0].Message.ID)
}

func TestConversation_NackRemovesPlaceholder(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	conn.ack = func(f protocol.Frame) *protocol.Frame {
		nack := protocol.NewNack(f.Token, peerchat.NewError(peerchat.ErrCodeValidation, "text is too long"))
		return &nack
	}
	conv := newTestConversation(t, server, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))
	openConnected(t, conv)

	_, err := conv.Send(context.Background(), "hey")
	require.Error(t, err)
	assert.True(t, peerchat.IsValidation(err))
	assert.Empty(t, conv.Entries())
}

func TestConversation_AckTimeoutRemovesPlaceholder(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	conn.ack = func(protocol.Frame) *protocol.Frame { return nil }
	conv := newTestConversation(t, server,
		WithDialer(&fakeDialer{conns: []*fakeConn{conn}}),
		WithAckTimeout(20*time.Millisecond),
	)
	openConnected(t, conv)

	_, err := conv.Send(context.Background(), "hey")
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Empty(t, conv.Entries())
}

func TestConversation_LateAckRestoresMessage(t *testing.T) {
	server := &fakeServer{self: "alice", histErr: errors.New("history unavailable")}
	conn := newFakeConn(server)
	conn.ack = func(f protocol.Frame) *protocol.Frame {
		ack := protocol.NewAck(f.Token, server.persist(server.self, f.To, f.Text))
		go func() {
			time.Sleep(60 * time.Millisecond)
			conn.in <- ack
		}()
		return nil
	}
	conv := newTestConversation(t, server,
		WithDialer(&fakeDialer{conns: []*fakeConn{conn}}),
		WithAckTimeout(20*time.Millisecond),
	)
	openConnected(t, conv)

	_, err := conv.Send(context.Background(), "hey")
	require.ErrorIs(t, err, ErrAckTimeout)

	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, 5*time.Millisecond)
	entries := conv.Entries()
	assert.False(t, entries[0].Pending())
	assert.Equal(t, int64(1), entries[0].Message.ID)
	assert.Equal(t, "hey", entries[0].Message.Text)
	assert.Equal(t, StateConnected, conv.State())
}

func TestConversation_CancelledSendRestoredByHistory(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	conn.ack = func(f protocol.Frame) *protocol.Frame {
		server.persist(server.self, f.To, f.Text)
		return nil
	}
	conv := newTestConversation(t, server, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))
	openConnected(t, conv)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conv.Send(ctx, "hey")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, 5*time.Millisecond)
	entries := conv.Entries()
	assert.False(t, entries[0].Pending())
	assert.Equal(t, server.history()[0].ID, entries[0].Message.ID)
	assert.Equal(t, StateConnected, conv.State())
}

func TestConversation_ChannelDropFailsInFlightSend(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	conn.ack = func(protocol.Frame) *protocol.Frame {
		go conn.Close()
		return nil
	}
	conv := newTestConversation(t, server,
		WithDialer(&fakeDialer{conns: []*fakeConn{conn}}),
		WithAckTimeout(5*time.Second),
	)
	openConnected(t, conv)

	_, err := conv.Send(context.Background(), "hey")
	assert.ErrorIs(t, err, ErrChannelLost)
	assert.Empty(t, conv.Entries())
}

func TestConversation_PushMergedAndFiltered(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	conv := newTestConversation(t, server, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))
	openConnected(t, conv)

	hey := canonical(100, "bob", "alice", "hey", time.Minute)
	conn.in <- protocol.NewPush(canonical(101, "carol", "alice", "not this pair", time.Minute))
	conn.in <- protocol.NewPush(hey)
	conn.in <- protocol.NewPush(hey)

	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	entries := conv.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].Message.ID)
}

// A message pushed and later returned by a poll appears once.
func TestConversation_DedupPushThenPoll(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conn := newFakeConn(server)
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	conv := newTestConversation(t, server, WithDialer(dialer), WithPollInterval(5*time.Millisecond))
	openConnected(t, conv)

	pushed := server.persist("bob", "alice", "hey")
	conn.in <- protocol.NewPush(pushed)
	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, time.Millisecond)

	// drop the channel so the poller takes over; the dialer has nothing left
	_ = conn.Close()
	require.Eventually(t, func() bool { return conv.State() != StateConnected }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	entries := conv.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, pushed.ID, entries[0].Message.ID)
}

// Scenario A from the recipient's side: messages sent while offline arrive by polling.
func TestConversation_PollWhileDisconnected(t *testing.T) {
	server := &fakeServer{self: "alice"}
	conv := newTestConversation(t, server, WithPollInterval(5*time.Millisecond))
	require.NoError(t, conv.Open(context.Background()))

	server.persist("bob", "alice", "hi")
	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, conv.Entries(), 1)
}

func TestConversation_ReconnectsWithBackoff(t *testing.T) {
	server := &fakeServer{self: "alice"}
	dialer := &fakeDialer{failures: 3, conns: []*fakeConn{newFakeConn(server)}}

	var mu sync.Mutex
	var changes int
	conv := newTestConversation(t, server, WithDialer(dialer), WithOnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	}))
	openConnected(t, conv)

	dialer.mu.Lock()
	assert.Equal(t, 4, dialer.dials)
	dialer.mu.Unlock()

	mu.Lock()
	assert.Positive(t, changes)
	mu.Unlock()
}

func TestConversation_GivesUpAfterMaxAttempts(t *testing.T) {
	server := &fakeServer{self: "alice"}
	dialer := &fakeDialer{failures: 100}
	conv := newTestConversation(t, server,
		WithDialer(dialer),
		WithReconnectStrategy(retry.Strategy{MaxAttempts: 2, BaseDelay: time.Millisecond, ExponentialBase: 1}),
	)
	require.NoError(t, conv.Open(context.Background()))

	require.Eventually(t, func() bool {
		dialer.mu.Lock()
		defer dialer.mu.Unlock()
		return dialer.dials == 3
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	dialer.mu.Lock()
	assert.Equal(t, 3, dialer.dials)
	dialer.mu.Unlock()
	assert.Equal(t, StateDisconnected, conv.State())

	// sends still work through the transport
	_, err := conv.Send(context.Background(), "anyone?")
	require.NoError(t, err)
}

func TestConversation_ResultsDiscardedAfterClose(t *testing.T) {
	server := &fakeServer{self: "alice", release: make(chan struct{})}
	conv := newTestConversation(t, server)

	done := make(chan error)
	go func() {
		_, err := conv.Send(context.Background(), "late")
		done <- err
	}()
	require.Eventually(t, func() bool { return len(conv.Entries()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, conv.Close())
	before := conv.Entries()

	close(server.release)
	require.NoError(t, <-done)
	assert.Equal(t, before, conv.Entries(), "view must not change after close")

	_, err := conv.Send(context.Background(), "again")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, conv.Open(context.Background()), ErrClosed)
	assert.NoError(t, conv.Close())
}

func TestConversation_OpenTwice(t *testing.T) {
	conv := newTestConversation(t, &fakeServer{self: "alice"})
	require.NoError(t, conv.Open(context.Background()))
	assert.Error(t, conv.Open(context.Background()))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}
