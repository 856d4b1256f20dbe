package peerchat

import (
	"fmt"
	"time"
)

// GatewayOption is a function that configures a Gateway.
//
// Example:
//
//	gateway, err := peerchat.NewGateway(
//	    peerchat.WithMessageStore(store),
//	    peerchat.WithLogger(logger),
//	    peerchat.WithPushTimeout(2*time.Second), // optional
//	)
type GatewayOption func(*Gateway) error

// WithMessageStore sets the store every send is persisted to.
//
// This is a required option for NewGateway.
func WithMessageStore(store *MessageStore) GatewayOption {
	return func(g *Gateway) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		g.store = store
		return nil
	}
}

// WithLogger sets the logger instance for the gateway.
//
// This is a required option for NewGateway.
func WithLogger(logger Logger) GatewayOption {
	return func(g *Gateway) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		g.logger = withComponent("gateway", logger)
		return nil
	}
}

// WithNotifications sets the service that receives delivery and connection events.
// Defaults to NoOpNotificationService.
func WithNotifications(service NotificationService) GatewayOption {
	return func(g *Gateway) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		g.notifications = service
		return nil
	}
}

// WithPushTimeout bounds a single push attempt. Defaults to 5 seconds.
func WithPushTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) error {
		if d <= 0 {
			return fmt.Errorf("push timeout must be positive, got %v", d)
		}
		g.pushTimeout = d
		return nil
	}
}
