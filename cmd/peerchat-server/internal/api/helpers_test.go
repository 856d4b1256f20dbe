package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/adapters/memory"
	"github.com/coregx/peerchat/cmd/peerchat-server/internal/metrics"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	repo    *memory.MessageRepository
	gateway *peerchat.Gateway
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := &peerchat.NoopLogger{}
	repo := memory.NewMessageRepository()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store, err := peerchat.NewMessageStore(
		peerchat.WithStoreRepository(repo),
		peerchat.WithStoreLogger(logger),
	)
	require.NoError(t, err)

	gateway, err := peerchat.NewGateway(
		peerchat.WithMessageStore(store),
		peerchat.WithLogger(logger),
		peerchat.WithNotifications(m),
		peerchat.WithPushTimeout(time.Second),
	)
	require.NoError(t, err)

	history, err := peerchat.NewHistoryService(
		peerchat.WithHistoryStore(store),
		peerchat.WithHistoryLogger(logger),
	)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Handler:  NewHandler(gateway, history, repo, m.HistoryRequests, logger),
		WS:       NewWSHandler(gateway, WSConfig{PingInterval: time.Second, WriteTimeout: time.Second, SendBuffer: 4}, logger),
		Auth:     NewAuthenticator(testSecret),
		Metrics:  m,
		Gatherer: reg,
		Log:      zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, repo: repo, gateway: gateway, metrics: m}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func tokenFor(t *testing.T, userID string) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) waitConnected(t *testing.T, userID string) {
	t.Helper()
	require.Eventually(t, func() bool { return s.gateway.Connected(userID) }, 2*time.Second, 10*time.Millisecond)
}
