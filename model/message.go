// Package model contains the domain models shared by the chat server, its
// persistence adapters and the client reconciler.
package model

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// MaxUserIDLength bounds the opaque identities issued by the auth collaborator.
	MaxUserIDLength = 128

	// MaxTextLength is the default upper bound for message text, in runes.
	MaxTextLength = 4096
)

// tablePrefix is the default prefix used by SQL adapters.
const tablePrefix = "peerchat_"

// Message is a single chat message exchanged between two users.
// Messages are immutable once persisted: the store assigns ID and CreatedAt
// exactly once and nothing in this module mutates or deletes them afterwards.
type Message struct {
	ID         int64     `json:"id" db:"id"`                // Store-assigned, increases in write order
	FromUserID string    `json:"from" db:"from_user_id"`    // Sender identity
	ToUserID   string    `json:"to" db:"to_user_id"`        // Recipient identity
	PairKey    string    `json:"-" db:"pair_key"`           // Unordered pair key, see PairKey
	Text       string    `json:"text" db:"text"`            // Trimmed, non-empty
	CreatedAt  time.Time `json:"createdAt" db:"created_at"` // Persistence time, UTC
}

// TableName returns the database table name for Message.
func (m Message) TableName() string {
	return tablePrefix + "message"
}

// NewMessage builds an unpersisted message. Text is trimmed and the pair key
// is derived from the two identities; ID and CreatedAt are left for the store.
func NewMessage(from, to, text string) Message {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	return Message{
		FromUserID: from,
		ToUserID:   to,
		PairKey:    PairKey(from, to),
		Text:       strings.TrimSpace(text),
	}
}

// Validate checks the fields a send request must carry before persistence.
func (m Message) Validate() error {
	return m.ValidateWithLimit(MaxTextLength)
}

// ValidateWithLimit is Validate with a custom text length bound.
func (m Message) ValidateWithLimit(maxText int) error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.FromUserID, validation.Required, validation.Length(1, MaxUserIDLength)),
		validation.Field(&m.ToUserID, validation.Required, validation.Length(1, MaxUserIDLength)),
		validation.Field(&m.Text, validation.Required, validation.By(maxRunes(maxText))),
	)
}

func maxRunes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if limit > 0 && utf8.RuneCountInString(s) > limit {
			return validation.NewError("validation_text_too_long", "is too long")
		}
		return nil
	}
}

// PairKey returns the conversation key for an unordered pair of users.
// PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Involves reports whether the message belongs to the conversation between a and b,
// in either direction.
func (m Message) Involves(a, b string) bool {
	return (m.FromUserID == a && m.ToUserID == b) || (m.FromUserID == b && m.ToUserID == a)
}

// Less orders messages by (CreatedAt, ID).
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// SameContent reports whether two messages carry the same sender, recipient and text.
// Used to match optimistic placeholders against canonical records.
func (m Message) SameContent(other Message) bool {
	return m.FromUserID == other.FromUserID && m.ToUserID == other.ToUserID && m.Text == other.Text
}

// SortMessages sorts messages in place by (CreatedAt, ID).
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Less(msgs[j])
	})
}
