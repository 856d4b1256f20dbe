// Package memory provides an in-process peerchat.MessageRepository.
//
// Messages live only as long as the process. Useful for tests, demos and
// single-node development servers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

// MessageRepository keeps messages in memory, indexed by pair key.
//
// Thread safety: Safe for concurrent use.
type MessageRepository struct {
	mu     sync.RWMutex
	nextID int64
	count  int
	byPair map[string][]model.Message
}

// NewMessageRepository creates an empty repository.
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		byPair: make(map[string][]model.Message),
	}
}

// Insert stores m under the next free ID.
func (r *MessageRepository) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "insert cancelled", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	m.ID = r.nextID
	m.PairKey = model.PairKey(m.FromUserID, m.ToUserID)

	r.count++
	r.byPair[m.PairKey] = append(r.byPair[m.PairKey], m)
	return m, nil
}

// FindByPair returns a copy of the conversation, ordered by (CreatedAt, ID).
func (r *MessageRepository) FindByPair(ctx context.Context, pairKey string, since *time.Time) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "query cancelled", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.byPair[pairKey]
	out := make([]model.Message, 0, len(stored))
	for _, m := range stored {
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		out = append(out, m)
	}

	model.SortMessages(out)
	return out, nil
}

// Ping always succeeds.
func (r *MessageRepository) Ping(_ context.Context) error {
	return nil
}

// Len returns the total number of stored messages.
func (r *MessageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

var (
	_ peerchat.MessageRepository = (*MessageRepository)(nil)
	_ peerchat.Pinger            = (*MessageRepository)(nil)
)
