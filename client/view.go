package client

import (
	"sort"
	"strconv"
	"time"

	"github.com/coregx/peerchat/model"
)

// EntryKind tags an Entry as a local placeholder or a server record.
type EntryKind int

const (
	// EntryPending is an optimistic placeholder for an in-flight send.
	EntryPending EntryKind = iota
	// EntryConfirmed is a canonical record with a server-assigned ID.
	EntryConfirmed
)

// String returns the kind name.
func (k EntryKind) String() string {
	if k == EntryConfirmed {
		return "confirmed"
	}
	return "pending"
}

// Entry is one row of the conversation as displayed.
//
// For pending entries Message.ID is zero, Message.CreatedAt is the local
// creation time and LocalID identifies the placeholder.
type Entry struct {
	Kind    EntryKind
	LocalID string
	Token   string
	Message model.Message
}

// Pending reports whether the entry is an unconfirmed placeholder.
func (e Entry) Pending() bool {
	return e.Kind == EntryPending
}

// View is the reconciled conversation: canonical records keyed by ID plus an
// ordered list of pending placeholders.
//
// Every merge is idempotent. Applying the same push, ack or history result
// twice leaves the view unchanged, so producers may race freely as long as
// calls are serialized. View itself is not safe for concurrent use;
// Conversation guards it.
type View struct {
	confirmed map[int64]model.Message
	pending   []Entry
	seq       int
	now       func() time.Time
}

// NewView creates an empty view.
func NewView() *View {
	return &View{
		confirmed: make(map[int64]model.Message),
		now:       time.Now,
	}
}

// AddPending appends a placeholder for a send that has not been acknowledged.
func (v *View) AddPending(from, to, text, token string) Entry {
	v.seq++
	e := Entry{
		Kind:    EntryPending,
		LocalID: "local-" + strconv.Itoa(v.seq),
		Token:   token,
		Message: model.Message{
			FromUserID: from,
			ToUserID:   to,
			PairKey:    model.PairKey(from, to),
			Text:       text,
			CreatedAt:  v.now().UTC(),
		},
	}
	v.pending = append(v.pending, e)
	return e
}

// ConfirmToken resolves the placeholder carrying token with its canonical
// record. Reports whether the view changed.
func (v *View) ConfirmToken(token string, msg model.Message) bool {
	removed := v.RemovePending(token)
	added := v.addConfirmed(msg)
	return removed || added
}

// ConfirmContent resolves the oldest placeholder with the same sender,
// recipient and text as msg. If msg is already known its placeholder was
// absorbed earlier and nothing changes.
func (v *View) ConfirmContent(msg model.Message) bool {
	if msg.ID == 0 {
		return false
	}
	if _, ok := v.confirmed[msg.ID]; ok {
		return false
	}
	v.absorbPending(msg)
	return v.addConfirmed(msg)
}

// RemovePending drops the placeholder carrying token.
func (v *View) RemovePending(token string) bool {
	if token == "" {
		return false
	}
	for i, e := range v.pending {
		if e.Token == token {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return true
		}
	}
	return false
}

// MergePush merges a pushed canonical record. A known ID is ignored; otherwise
// the record replaces a matching placeholder, or is inserted in order.
func (v *View) MergePush(msg model.Message) bool {
	if msg.ID == 0 {
		return false
	}
	if _, ok := v.confirmed[msg.ID]; ok {
		return false
	}
	v.absorbPending(msg)
	return v.addConfirmed(msg)
}

// MergeHistory merges a full or partial history result into the canonical
// portion of the view.
//
// Canonical records are immutable and never deleted, so a fetched history is
// always a subset of the truth. Records missing from msgs (for example a push
// that raced a slow fetch) stay in the view. Each record that is new to the
// view absorbs at most one matching placeholder; placeholders with no new
// matching record are preserved.
func (v *View) MergeHistory(msgs []model.Message) bool {
	fresh := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := v.confirmed[m.ID]; ok {
			continue
		}
		fresh = append(fresh, m)
	}
	model.SortMessages(fresh)

	changed := false
	for _, m := range fresh {
		if !v.addConfirmed(m) {
			continue
		}
		v.absorbPending(m)
		changed = true
	}
	return changed
}

// Entries returns the display sequence: canonical records ordered by
// (CreatedAt, ID), followed by pending placeholders in creation order.
func (v *View) Entries() []Entry {
	msgs := make([]model.Message, 0, len(v.confirmed))
	for _, m := range v.confirmed {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Less(msgs[j]) })

	out := make([]Entry, 0, len(msgs)+len(v.pending))
	for _, m := range msgs {
		out = append(out, Entry{Kind: EntryConfirmed, Message: m})
	}
	return append(out, v.pending...)
}

// Len returns the number of displayed entries.
func (v *View) Len() int {
	return len(v.confirmed) + len(v.pending)
}

// PendingCount returns the number of unconfirmed placeholders.
func (v *View) PendingCount() int {
	return len(v.pending)
}

func (v *View) addConfirmed(msg model.Message) bool {
	if msg.ID == 0 {
		return false
	}
	if _, ok := v.confirmed[msg.ID]; ok {
		return false
	}
	if msg.PairKey == "" {
		msg.PairKey = model.PairKey(msg.FromUserID, msg.ToUserID)
	}
	v.confirmed[msg.ID] = msg
	return true
}

// absorbPending removes the oldest placeholder whose content matches msg.
func (v *View) absorbPending(msg model.Message) bool {
	for i, e := range v.pending {
		if e.Message.SameContent(msg) {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return true
		}
	}
	return false
}
