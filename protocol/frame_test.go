package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    string
	}{
		{"send", `{"type":"send","token":"t1","to":"bob","text":"hi"}`, false, TypeSend},
		{"send without token", `{"type":"send","to":"bob","text":"hi"}`, true, ""},
		{"send without recipient", `{"type":"send","token":"t1","text":"hi"}`, true, ""},
		{"ack", `{"type":"ack","token":"t1","ok":false,"error":{"code":"STORAGE_ERROR","message":"down"}}`, false, TypeAck},
		{"ack without ok", `{"type":"ack","token":"t1"}`, true, ""},
		{"push", `{"type":"message","message":{"id":1,"from":"a","to":"b","text":"x","createdAt":"2026-01-01T00:00:00Z"}}`, false, TypeMessage},
		{"push without message", `{"type":"message"}`, true, ""},
		{"unknown type", `{"type":"typing"}`, true, ""},
		{"not json", `hello`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, peerchat.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Type)
		})
	}
}

func TestAckFrames(t *testing.T) {
	msg := model.Message{ID: 7, FromUserID: "alice", ToUserID: "bob", Text: "hi", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	ack := NewAck("tok", msg)
	assert.True(t, ack.Succeeded())
	require.NoError(t, ack.Validate())

	nack := NewNack("tok", peerchat.NewError(peerchat.ErrCodeStorage, "database down"))
	assert.False(t, nack.Succeeded())
	require.NotNil(t, nack.Error)
	assert.Equal(t, peerchat.ErrCodeStorage, nack.Error.Code)
	assert.Equal(t, "database down", nack.Error.Message)
	assert.True(t, peerchat.IsStorage(nack.Error.Err()))
}

func TestNewError_PlainError(t *testing.T) {
	f := NewError(assert.AnError)
	require.NotNil(t, f.Error)
	assert.Equal(t, peerchat.ErrCodeValidation, f.Error.Code)
	assert.Equal(t, assert.AnError.Error(), f.Error.Message)
}

func TestPushWireFormat(t *testing.T) {
	msg := model.NewMessage("alice", "bob", "hi")
	msg.ID = 3
	msg.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	data, err := json.Marshal(NewPush(msg))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"message","message":{"id":3,"from":"alice","to":"bob","text":"hi","createdAt":"2026-01-01T00:00:00Z"}}`,
		string(data))
}
