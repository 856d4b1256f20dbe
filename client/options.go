package client

import (
	"fmt"
	"time"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/retry"
)

// Option configures a Conversation.
type Option func(*Conversation) error

// WithDialer enables the live channel. Without a dialer the conversation
// stays disconnected and relies on the Transport and the poller.
func WithDialer(d Dialer) Option {
	return func(c *Conversation) error {
		if d == nil {
			return fmt.Errorf("dialer cannot be nil")
		}
		c.dialer = d
		return nil
	}
}

// WithPollInterval sets the fallback poll interval. Defaults to 5 seconds.
func WithPollInterval(d time.Duration) Option {
	return func(c *Conversation) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %v", d)
		}
		c.pollInterval = d
		return nil
	}
}

// WithAckTimeout bounds how long a live-channel send waits for its
// acknowledgement. Defaults to 10 seconds.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Conversation) error {
		if d <= 0 {
			return fmt.Errorf("ack timeout must be positive, got %v", d)
		}
		c.ackTimeout = d
		return nil
	}
}

// WithReconnectStrategy sets the live-channel reconnect backoff.
func WithReconnectStrategy(s retry.Strategy) Option {
	return func(c *Conversation) error {
		if err := s.Validate(); err != nil {
			return err
		}
		c.reconnect = s
		return nil
	}
}

// WithLogger sets the logger instance.
func WithLogger(logger peerchat.Logger) Option {
	return func(c *Conversation) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithOnChange registers a callback invoked after the view or the state
// changes. It runs on the goroutine that made the change and must not block.
func WithOnChange(fn func()) Option {
	return func(c *Conversation) error {
		c.onChange = fn
		return nil
	}
}

// withTokens replaces the correlation token generator.
func withTokens(fn func() string) Option {
	return func(c *Conversation) error {
		c.newToken = fn
		return nil
	}
}
