package peerchat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coregx/peerchat/model"
)

// fakeRepo is an in-memory MessageRepository that can be told to fail.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	msgs    []model.Message
	failErr error
}

func (r *fakeRepo) Insert(_ context.Context, m model.Message) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return model.Message{}, r.failErr
	}
	r.nextID++
	m.ID = r.nextID
	r.msgs = append(r.msgs, m)
	return m, nil
}

func (r *fakeRepo) FindByPair(_ context.Context, pairKey string, since *time.Time) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return nil, r.failErr
	}
	var out []model.Message
	// reverse insertion order so callers must sort
	for i := len(r.msgs) - 1; i >= 0; i-- {
		m := r.msgs[i]
		if m.PairKey != pairKey {
			continue
		}
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// fakeChannel records pushes and optionally fails or blocks.
type fakeChannel struct {
	mu      sync.Mutex
	pushed  []model.Message
	failErr error
	block   bool
}

func (c *fakeChannel) Push(ctx context.Context, msg model.Message) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.pushed = append(c.pushed, msg)
	return nil
}

func (c *fakeChannel) received() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.pushed...)
}

// recordingNotifier captures notification events.
type recordingNotifier struct {
	mu           sync.Mutex
	delivered    []int64
	misses       []error
	sendFailures []error
	registered   []bool
	deregistered []string
}

func (n *recordingNotifier) NotifyDelivered(_ context.Context, msg model.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, msg.ID)
}

func (n *recordingNotifier) NotifyDeliveryMiss(_ context.Context, _ model.Message, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.misses = append(n.misses, err)
}

func (n *recordingNotifier) NotifySendFailed(_ context.Context, _ string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendFailures = append(n.sendFailures, err)
}

func (n *recordingNotifier) NotifyChannelRegistered(_ string, replaced bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.registered = append(n.registered, replaced)
}

func (n *recordingNotifier) NotifyChannelDeregistered(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deregistered = append(n.deregistered, userID)
}

var errBackend = errors.New("backend unavailable")

func newTestStore(t *testing.T, repo MessageRepository, opts ...StoreOption) *MessageStore {
	t.Helper()
	opts = append([]StoreOption{WithStoreRepository(repo), WithStoreLogger(&NoopLogger{})}, opts...)
	store, err := NewMessageStore(opts...)
	require.NoError(t, err)
	return store
}

func newTestGateway(t *testing.T, store *MessageStore, opts ...GatewayOption) *Gateway {
	t.Helper()
	opts = append([]GatewayOption{WithMessageStore(store), WithLogger(&NoopLogger{})}, opts...)
	g, err := NewGateway(opts...)
	require.NoError(t, err)
	return g
}
