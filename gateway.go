package peerchat

import (
	"context"
	"strings"
	"time"

	"github.com/coregx/peerchat/model"
)

// Gateway routes send requests to the MessageStore and, best-effort, to the
// recipient's live channel.
//
// The send path is:
//  1. Append the message to the store (must succeed before anything else)
//  2. Look up the recipient's live channel
//  3. Push the persisted message over it, at most once
//
// Because step 1 completes before step 3 starts, history is always a superset
// of what was ever pushed. Push failures are logged and reported to the
// NotificationService, never returned to the sender: an undelivered push is
// recovered by the recipient's next history fetch. There is no retry queue.
//
// The gateway exclusively owns the connection registry.
//
// Thread safety: Safe for concurrent use.
type Gateway struct {
	store         *MessageStore
	registry      *ConnectionRegistry
	logger        Logger
	notifications NotificationService
	pushTimeout   time.Duration
}

// NewGateway creates a new Gateway with the provided options.
//
// Required options:
//   - WithMessageStore: persistence for every send
//   - WithLogger: logger instance
//
// Optional options:
//   - WithNotifications: delivery/connection event sink (default: no-op)
//   - WithPushTimeout: bound for a single push (default: 5s)
func NewGateway(opts ...GatewayOption) (*Gateway, error) {
	g := &Gateway{
		registry:      NewConnectionRegistry(),
		notifications: &NoOpNotificationService{},
		pushTimeout:   5 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply gateway option", err)
		}
	}

	if g.store == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required (use WithMessageStore)")
	}
	if g.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLogger)")
	}

	return g, nil
}

// Send persists a message from senderID to toUserID and then attempts to push
// it to the recipient.
//
// The persisted message is returned whenever the append succeeds, whether or
// not the push succeeded. Errors are those of MessageStore.Append, plus
// AUTHENTICATION_MISSING when senderID is empty.
func (g *Gateway) Send(ctx context.Context, senderID, toUserID, text string) (model.Message, error) {
	if strings.TrimSpace(senderID) == "" {
		g.notifications.NotifySendFailed(ctx, senderID, ErrAuthenticationMissing)
		return model.Message{}, ErrAuthenticationMissing
	}

	msg, err := g.store.Append(ctx, senderID, toUserID, text)
	if err != nil {
		g.notifications.NotifySendFailed(ctx, senderID, err)
		return model.Message{}, err
	}

	g.logger.Infof("message sent: id=%d, from=%s, to=%s", msg.ID, msg.FromUserID, msg.ToUserID)

	g.push(ctx, msg)
	return msg, nil
}

// push makes one bounded delivery attempt. It never returns an error.
func (g *Gateway) push(ctx context.Context, msg model.Message) {
	ch, ok := g.registry.Lookup(msg.ToUserID)
	if !ok {
		g.logger.Debugf("recipient offline, message %d left for pull: to=%s", msg.ID, msg.ToUserID)
		g.notifications.NotifyDeliveryMiss(ctx, msg, ErrNoChannel)
		return
	}

	// Detached from the sender's cancellation; the send has already succeeded.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.pushTimeout)
	defer cancel()

	if err := ch.Push(pushCtx, msg); err != nil {
		miss := NewErrorWithCause(ErrCodeDeliveryMiss, "push failed", err)
		g.logger.Warnf("push failed for message %d to %s: %v", msg.ID, msg.ToUserID, err)
		g.notifications.NotifyDeliveryMiss(ctx, msg, miss)
		return
	}

	g.notifications.NotifyDelivered(ctx, msg)
}

// Register makes ch the live channel for userID, replacing any previous one.
// Registering the same channel again is a no-op.
func (g *Gateway) Register(userID string, ch Channel) {
	if userID == "" || ch == nil {
		return
	}
	added, replaced := g.registry.Register(userID, ch)
	if !added {
		return
	}
	if replaced {
		g.logger.Infof("live channel replaced: user=%s", userID)
	}
	g.notifications.NotifyChannelRegistered(userID, replaced)
}

// Deregister removes userID's registration if it still points at ch.
// It is a no-op when a newer channel has replaced ch, or when called twice.
func (g *Gateway) Deregister(userID string, ch Channel) {
	if g.registry.Deregister(userID, ch) {
		g.notifications.NotifyChannelDeregistered(userID)
	}
}

// Connected reports whether userID currently has a live channel.
func (g *Gateway) Connected(userID string) bool {
	_, ok := g.registry.Lookup(userID)
	return ok
}

// ConnectionCount returns the number of users with a live channel.
func (g *Gateway) ConnectionCount() int {
	return g.registry.Len()
}
