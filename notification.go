package peerchat

import (
	"context"

	"github.com/coregx/peerchat/model"
)

// NotificationService receives delivery and connection events from the Gateway.
//
// Implementations might export metrics, write audit logs or feed dashboards.
// Calls are made synchronously on the send path, so implementations must be fast
// and must not block.
type NotificationService interface {
	// NotifyDelivered is called after a persisted message was pushed to the recipient's channel.
	NotifyDelivered(ctx context.Context, msg model.Message)

	// NotifyDeliveryMiss is called when the recipient had no channel or the push failed.
	// The message is persisted regardless and will reach the recipient through history.
	NotifyDeliveryMiss(ctx context.Context, msg model.Message, err error)

	// NotifySendFailed is called when a send was rejected before or during persistence.
	NotifySendFailed(ctx context.Context, senderID string, err error)

	// NotifyChannelRegistered is called when a user's live channel is registered.
	// replaced is true when an older registration for the same user was evicted.
	NotifyChannelRegistered(userID string, replaced bool)

	// NotifyChannelDeregistered is called when a live channel registration is removed.
	NotifyChannelDeregistered(userID string)
}

// NoOpNotificationService ignores all events.
type NoOpNotificationService struct{}

// NotifyDelivered does nothing.
func (n *NoOpNotificationService) NotifyDelivered(_ context.Context, _ model.Message) {}

// NotifyDeliveryMiss does nothing.
func (n *NoOpNotificationService) NotifyDeliveryMiss(_ context.Context, _ model.Message, _ error) {}

// NotifySendFailed does nothing.
func (n *NoOpNotificationService) NotifySendFailed(_ context.Context, _ string, _ error) {}

// NotifyChannelRegistered does nothing.
func (n *NoOpNotificationService) NotifyChannelRegistered(_ string, _ bool) {}

// NotifyChannelDeregistered does nothing.
func (n *NoOpNotificationService) NotifyChannelDeregistered(_ string) {}

// LoggingNotificationService logs every event.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyDelivered logs a successful push.
func (n *LoggingNotificationService) NotifyDelivered(_ context.Context, msg model.Message) {
	n.logger.Debugf("pushed message: id=%d, to=%s", msg.ID, msg.ToUserID)
}

// NotifyDeliveryMiss logs a missed push.
func (n *LoggingNotificationService) NotifyDeliveryMiss(_ context.Context, msg model.Message, err error) {
	n.logger.Warnf("delivery miss: id=%d, to=%s: %v", msg.ID, msg.ToUserID, err)
}

// NotifySendFailed logs a failed send.
func (n *LoggingNotificationService) NotifySendFailed(_ context.Context, senderID string, err error) {
	n.logger.Warnf("send failed: sender=%s: %v", senderID, err)
}

// NotifyChannelRegistered logs a registration.
func (n *LoggingNotificationService) NotifyChannelRegistered(userID string, replaced bool) {
	if replaced {
		n.logger.Infof("live channel replaced: user=%s", userID)
		return
	}
	n.logger.Infof("live channel registered: user=%s", userID)
}

// NotifyChannelDeregistered logs a deregistration.
func (n *LoggingNotificationService) NotifyChannelDeregistered(userID string) {
	n.logger.Infof("live channel deregistered: user=%s", userID)
}

// MultiNotificationService fans every event out to several services in order.
type MultiNotificationService []NotificationService

// NotifyDelivered implements NotificationService.
func (m MultiNotificationService) NotifyDelivered(ctx context.Context, msg model.Message) {
	for _, n := range m {
		n.NotifyDelivered(ctx, msg)
	}
}

// NotifyDeliveryMiss implements NotificationService.
func (m MultiNotificationService) NotifyDeliveryMiss(ctx context.Context, msg model.Message, err error) {
	for _, n := range m {
		n.NotifyDeliveryMiss(ctx, msg, err)
	}
}

// NotifySendFailed implements NotificationService.
func (m MultiNotificationService) NotifySendFailed(ctx context.Context, senderID string, err error) {
	for _, n := range m {
		n.NotifySendFailed(ctx, senderID, err)
	}
}

// NotifyChannelRegistered implements NotificationService.
func (m MultiNotificationService) NotifyChannelRegistered(userID string, replaced bool) {
	for _, n := range m {
		n.NotifyChannelRegistered(userID, replaced)
	}
}

// NotifyChannelDeregistered implements NotificationService.
func (m MultiNotificationService) NotifyChannelDeregistered(userID string) {
	for _, n := range m {
		n.NotifyChannelDeregistered(userID)
	}
}
