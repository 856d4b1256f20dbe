package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

// Transport is the request/response boundary used for sends while the live
// channel is down and for every history fetch.
type Transport interface {
	Send(ctx context.Context, to, text string) (model.Message, error)
	History(ctx context.Context, peerID string, since *time.Time) ([]model.Message, error)
}

// HTTPTransport talks to the peerchat REST API.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the server at baseURL
// (e.g. "http://localhost:8080") authenticating with a bearer token.
// A nil client uses a client with a 15 second timeout.
func NewHTTPTransport(baseURL, token string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

type sendBody struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type historyData struct {
	Messages []model.Message `json:"messages"`
}

// Send posts a message and returns the persisted record.
func (t *HTTPTransport) Send(ctx context.Context, to, text string) (model.Message, error) {
	body, err := json.Marshal(sendBody{To: to, Text: text})
	if err != nil {
		return model.Message{}, err
	}

	var msg model.Message
	if err := t.do(ctx, http.MethodPost, "/api/v1/chat/send", bytes.NewReader(body), &msg); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// History fetches the conversation with peerID, optionally after since.
func (t *HTTPTransport) History(ctx context.Context, peerID string, since *time.Time) ([]model.Message, error) {
	path := "/api/v1/chat/history/" + url.PathEscape(peerID)
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	var data historyData
	if err := t.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	if data.Messages == nil {
		data.Messages = []model.Message{}
	}
	return data.Messages, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return peerchat.NewErrorWithCause(ErrCodeTransport, method+" "+path+" failed", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return peerchat.NewErrorWithCause(ErrCodeTransport, fmt.Sprintf("unreadable response (status %d)", resp.StatusCode), err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		code := env.Code
		if code == "" {
			code = ErrCodeTransport
		}
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return peerchat.NewError(code, msg)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return peerchat.NewErrorWithCause(ErrCodeTransport, "unexpected response payload", err)
	}
	return nil
}
