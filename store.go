package peerchat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coregx/peerchat/model"
)

// MessageStore is the durable, append-only log of chat messages and the single
// source of truth for conversation history.
//
// Append is the only write path and the only serialization point: every message
// acquires its CreatedAt and ID while holding the store lock, so two concurrent
// sends within a pair can never be ordered differently by time and by ID.
//
// Thread safety: Safe for concurrent use.
type MessageStore struct {
	repo    MessageRepository
	logger  Logger
	now     func() time.Time
	maxText int

	mu   sync.Mutex
	last time.Time
}

// StoreOption configures a MessageStore.
type StoreOption func(*MessageStore) error

// NewMessageStore creates a new MessageStore with the provided options.
//
// Required options:
//   - WithStoreRepository: persistence backend
//   - WithStoreLogger: logger instance
//
// Example:
//
//	store, err := peerchat.NewMessageStore(
//	    peerchat.WithStoreRepository(repos.Message),
//	    peerchat.WithStoreLogger(logger),
//	)
func NewMessageStore(opts ...StoreOption) (*MessageStore, error) {
	s := &MessageStore{
		now:     time.Now,
		maxText: model.MaxTextLength,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply store option", err)
		}
	}

	if s.repo == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageRepository is required (use WithStoreRepository)")
	}
	if s.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithStoreLogger)")
	}

	return s, nil
}

// WithStoreRepository sets the persistence backend.
func WithStoreRepository(repo MessageRepository) StoreOption {
	return func(s *MessageStore) error {
		if repo == nil {
			return fmt.Errorf("repo cannot be nil")
		}
		s.repo = repo
		return nil
	}
}

// WithStoreLogger sets the logger instance.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *MessageStore) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = withComponent("store", logger)
		return nil
	}
}

// WithMaxTextLength overrides the maximum message length in runes.
func WithMaxTextLength(n int) StoreOption {
	return func(s *MessageStore) error {
		if n <= 0 {
			return fmt.Errorf("max text length must be positive, got %d", n)
		}
		s.maxText = n
		return nil
	}
}

// WithClock replaces the wall clock used to stamp CreatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MessageStore) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// Append validates and persists a new message.
//
// Text is trimmed before validation. Returns a VALIDATION_ERROR when either
// identity or the trimmed text is missing, and a STORAGE_ERROR when the
// repository fails; in both cases nothing is stored.
func (s *MessageStore) Append(ctx context.Context, fromUserID, toUserID, text string) (model.Message, error) {
	msg := model.NewMessage(fromUserID, toUserID, text)
	if err := msg.ValidateWithLimit(s.maxText); err != nil {
		return model.Message{}, NewErrorWithCause(ErrCodeValidation, "invalid message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg.CreatedAt = s.nextTimestamp()

	saved, err := s.repo.Insert(ctx, msg)
	if err != nil {
		s.logger.Errorf("append failed: from=%s, to=%s: %v", msg.FromUserID, msg.ToUserID, err)
		if CodeOf(err) == ErrCodeStorage {
			return model.Message{}, err
		}
		return model.Message{}, NewErrorWithCause(ErrCodeStorage, "failed to persist message", err)
	}
	s.last = msg.CreatedAt

	s.logger.Debugf("appended message: id=%d, pair=%s", saved.ID, saved.PairKey)
	return saved, nil
}

// nextTimestamp returns the persistence time for the next append. It never
// goes backwards, even if the wall clock does. Must be called with s.mu held.
func (s *MessageStore) nextTimestamp() time.Time {
	ts := s.now().UTC().Truncate(time.Microsecond)
	if ts.Before(s.last) {
		ts = s.last
	}
	return ts
}

// Query returns the conversation between userA and userB in either direction,
// ascending by (CreatedAt, ID). A nil since returns the full history; otherwise
// only messages created after *since are returned.
//
// Query keeps no cursor state and can be called any number of times.
func (s *MessageStore) Query(ctx context.Context, userA, userB string, since *time.Time) ([]model.Message, error) {
	if userA == "" || userB == "" {
		return nil, NewError(ErrCodeValidation, "both users are required")
	}

	msgs, err := s.repo.FindByPair(ctx, model.PairKey(userA, userB), since)
	if err != nil {
		if CodeOf(err) == ErrCodeStorage {
			return nil, err
		}
		return nil, NewErrorWithCause(ErrCodeStorage, "failed to query messages", err)
	}

	model.SortMessages(msgs)
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
