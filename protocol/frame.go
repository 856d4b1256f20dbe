// Package protocol defines the frames exchanged over the live WebSocket channel.
//
// Every frame is one JSON text message. Clients send "send" frames; the server
// answers each with an "ack" tagged with the client's correlation token and
// pushes inbound messages as "message" frames. Malformed input gets an "error"
// frame.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

// Frame types.
const (
	TypeSend    = "send"
	TypeAck     = "ack"
	TypeMessage = "message"
	TypeError   = "error"
)

// MaxTokenLength bounds the client-chosen correlation token.
const MaxTokenLength = 128

// Frame is the envelope for every live-channel message.
type Frame struct {
	Type    string         `json:"type"`
	Token   string         `json:"token,omitempty"`
	To      string         `json:"to,omitempty"`
	Text    string         `json:"text,omitempty"`
	Message *model.Message `json:"message,omitempty"`
	OK      *bool          `json:"ok,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody carries a peerchat error code and message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Err converts the body back into a *peerchat.Error.
func (b *ErrorBody) Err() error {
	if b == nil {
		return nil
	}
	return peerchat.NewError(b.Code, b.Message)
}

// NewSend builds a client send request.
func NewSend(token, to, text string) Frame {
	return Frame{Type: TypeSend, Token: token, To: to, Text: text}
}

// NewAck builds a successful acknowledgement for token.
func NewAck(token string, msg model.Message) Frame {
	ok := true
	return Frame{Type: TypeAck, Token: token, OK: &ok, Message: &msg}
}

// NewNack builds a failed acknowledgement for token.
func NewNack(token string, err error) Frame {
	ok := false
	return Frame{Type: TypeAck, Token: token, OK: &ok, Error: errorBody(err)}
}

// NewPush wraps a persisted message for delivery to its recipient.
func NewPush(msg model.Message) Frame {
	return Frame{Type: TypeMessage, Message: &msg}
}

// NewError builds a frame reporting a malformed request.
func NewError(err error) Frame {
	return Frame{Type: TypeError, Error: errorBody(err)}
}

func errorBody(err error) *ErrorBody {
	code := peerchat.CodeOf(err)
	if code == "" {
		code = peerchat.ErrCodeValidation
	}
	msg := err.Error()
	var pe *peerchat.Error
	if errors.As(err, &pe) {
		msg = pe.Message
	}
	return &ErrorBody{Code: code, Message: msg}
}

// Succeeded reports whether an ack frame carries a canonical message.
func (f Frame) Succeeded() bool {
	return f.Type == TypeAck && f.OK != nil && *f.OK && f.Message != nil
}

// Validate checks the fields required by the frame type.
func (f Frame) Validate() error {
	switch f.Type {
	case TypeSend:
		return validation.ValidateStruct(&f,
			validation.Field(&f.Token, validation.Required, validation.Length(1, MaxTokenLength)),
			validation.Field(&f.To, validation.Required, validation.Length(1, model.MaxUserIDLength)),
		)
	case TypeAck:
		return validation.ValidateStruct(&f,
			validation.Field(&f.Token, validation.Required),
			validation.Field(&f.OK, validation.NotNil),
		)
	case TypeMessage:
		return validation.ValidateStruct(&f,
			validation.Field(&f.Message, validation.NotNil),
		)
	case TypeError:
		return validation.ValidateStruct(&f,
			validation.Field(&f.Error, validation.NotNil),
		)
	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
}

// Decode parses and validates a frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, peerchat.NewErrorWithCause(peerchat.ErrCodeValidation, "malformed frame", err)
	}
	if err := f.Validate(); err != nil {
		return f, peerchat.NewErrorWithCause(peerchat.ErrCodeValidation, "invalid frame", err)
	}
	return f, nil
}
