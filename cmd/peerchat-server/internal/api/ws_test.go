package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
	"github.com/coregx/peerchat/protocol"
)

func dialWS(t *testing.T, srv *testServer, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	header := http.Header{"Authorization": {"Bearer " + tokenFor(t, userID)}}

	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	srv.waitConnected(t, userID)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f protocol.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWS_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_SendAckAndPush(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "alice")
	bob := dialWS(t, srv, "bob")

	require.NoError(t, alice.WriteJSON(protocol.NewSend("t1", "bob", "hello")))

	ack := readFrame(t, alice)
	require.True(t, ack.Succeeded())
	assert.Equal(t, "t1", ack.Token)
	assert.Equal(t, "hello", ack.Message.Text)

	push := readFrame(t, bob)
	require.Equal(t, protocol.TypeMessage, push.Type)
	assert.Equal(t, ack.Message.ID, push.Message.ID)
	assert.Equal(t, "alice", push.Message.FromUserID)
}

func TestWS_RESTSendPushesToLiveChannel(t *testing.T) {
	srv := newTestServer(t)
	bob := dialWS(t, srv, "bob")

	resp := srv.do(t, http.MethodPost, "/api/v1/chat/send", tokenFor(t, "alice"), `{"to":"bob","text":"over rest"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	push := readFrame(t, bob)
	require.Equal(t, protocol.TypeMessage, push.Type)
	assert.Equal(t, "over rest", push.Message.Text)
}

func TestWS_InvalidSendIsNacked(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "alice")

	require.NoError(t, alice.WriteJSON(protocol.NewSend("t1", "bob", "   ")))

	nack := readFrame(t, alice)
	assert.Equal(t, protocol.TypeAck, nack.Type)
	assert.False(t, nack.Succeeded())
	require.NotNil(t, nack.Error)
	assert.Equal(t, peerchat.ErrCodeValidation, nack.Error.Code)
	assert.Zero(t, srv.repo.Len())
}

func TestWS_MalformedFrame(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))

	f := readFrame(t, alice)
	assert.Equal(t, protocol.TypeError, f.Type)
	require.NotNil(t, f.Error)
	assert.Equal(t, peerchat.ErrCodeValidation, f.Error.Code)
}

func TestWS_DisconnectDeregisters(t *testing.T) {
	srv := newTestServer(t)
	alice := dialWS(t, srv, "alice")

	require.NoError(t, alice.Close())
	assert.Eventually(t, func() bool { return !srv.gateway.Connected("alice") }, 2*time.Second, 10*time.Millisecond)
}

func TestWS_NewConnectionReplacesOld(t *testing.T) {
	srv := newTestServer(t)
	first := dialWS(t, srv, "bob")
	second := dialWS(t, srv, "bob")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(srv.metrics.ChannelReplacements) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := srv.do(t, http.MethodPost, "/api/v1/chat/send", tokenFor(t, "alice"), `{"to":"bob","text":"latest"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	push := readFrame(t, second)
	assert.Equal(t, "latest", push.Message.Text)

	// Closing the replaced connection must not evict the newer one.
	require.NoError(t, first.Close())
	time.Sleep(100 * time.Millisecond)
	assert.True(t, srv.gateway.Connected("bob"))
}

func TestWSChannel_Push(t *testing.T) {
	ch := &wsChannel{
		send: make(chan protocol.Frame, 1),
		done: make(chan struct{}),
	}
	msg := model.Message{ID: 1, FromUserID: "alice", ToUserID: "bob", Text: "hi"}

	require.NoError(t, ch.Push(context.Background(), msg))
	assert.ErrorIs(t, ch.Push(context.Background(), msg), errSendBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Push(ctx, msg), context.Canceled)

	close(ch.done)
	assert.ErrorIs(t, ch.Push(context.Background(), msg), errChannelClosed)
}
