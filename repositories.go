package peerchat

import (
	"context"
	"time"

	"github.com/coregx/peerchat/model"
)

// MessageRepository defines the persistence interface for chat messages.
// Messages are append-only: there is no update or delete in this contract.
//
// Implementations must be safe for concurrent use. MessageStore serializes
// appends itself, so Insert is never called concurrently by this module.
type MessageRepository interface {
	// Insert persists a new message and returns it with ID populated.
	// ID must be unique and increase with insertion order.
	// On failure nothing must be stored.
	Insert(ctx context.Context, m model.Message) (model.Message, error)

	// FindByPair returns every message whose PairKey equals pairKey, ordered
	// ascending by (created_at, id). When since is non-nil only messages with
	// created_at strictly after *since are returned. Returns an empty slice
	// (never nil) when the conversation is empty.
	FindByPair(ctx context.Context, pairKey string, since *time.Time) ([]model.Message, error)
}

// Pinger is implemented by repositories that can report backend liveness.
// The server health endpoint uses it when available.
type Pinger interface {
	Ping(ctx context.Context) error
}
