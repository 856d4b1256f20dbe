package peerchat

import (
	"context"
	"sync"

	"github.com/coregx/peerchat/model"
)

// Channel is a live, push-capable connection owned by a single user.
//
// The registry only records which Channel is current for a user; it never
// closes a channel. A channel that goes away is expected to call
// Gateway.Deregister with itself.
//
// Channel values are compared with ==, so implementations should be pointers.
type Channel interface {
	// Push delivers a persisted message to the connected user. It must respect
	// ctx and return promptly; an error means the push did not happen.
	Push(ctx context.Context, msg model.Message) error
}

// ConnectionRegistry maps user IDs to their current live channel.
// At most one channel is held per user and a new registration replaces the
// previous one.
//
// Thread safety: Safe for concurrent use.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{channels: make(map[string]Channel)}
}

// Register makes ch the current channel for userID. added is false when ch
// was already current, in which case nothing changes. replaced reports whether
// a different channel was evicted.
func (r *ConnectionRegistry) Register(userID string, ch Channel) (added, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.channels[userID]
	if ok && prev == ch {
		return false, false
	}
	r.channels[userID] = ch
	return true, ok
}

// Deregister removes the registration for userID only if it still points at ch,
// so a late disconnect of an old connection cannot evict a newer one.
// It reports whether anything was removed.
func (r *ConnectionRegistry) Deregister(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.channels[userID]
	if !ok || current != ch {
		return false
	}
	delete(r.channels, userID)
	return true
}

// Lookup returns the current channel for userID.
func (r *ConnectionRegistry) Lookup(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[userID]
	return ch, ok
}

// Len returns the number of registered users.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
