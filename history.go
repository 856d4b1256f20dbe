package peerchat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coregx/peerchat/model"
)

// HistoryService is the read-only view over the MessageStore used for the
// initial conversation load and for fallback polling. It has no side effects
// and can be called as often as clients like.
type HistoryService struct {
	store  *MessageStore
	logger Logger
}

// HistoryOption configures a HistoryService.
type HistoryOption func(*HistoryService) error

// NewHistoryService creates a new HistoryService.
//
// Required options:
//   - WithHistoryStore
//   - WithHistoryLogger
func NewHistoryService(opts ...HistoryOption) (*HistoryService, error) {
	h := &HistoryService{}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply history option", err)
		}
	}

	if h.store == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required (use WithHistoryStore)")
	}
	if h.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithHistoryLogger)")
	}

	return h, nil
}

// WithHistoryStore sets the store queried for history.
func WithHistoryStore(store *MessageStore) HistoryOption {
	return func(h *HistoryService) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		h.store = store
		return nil
	}
}

// WithHistoryLogger sets the logger instance.
func WithHistoryLogger(logger Logger) HistoryOption {
	return func(h *HistoryService) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		h.logger = withComponent("history", logger)
		return nil
	}
}

// GetHistory returns the full conversation between requesterID and peerID,
// ascending by (CreatedAt, ID).
//
// requesterID is the authenticated caller, so the caller is always one of the
// two parties. Returns AUTHENTICATION_MISSING for an empty requester and
// VALIDATION_ERROR for an empty peer.
func (h *HistoryService) GetHistory(ctx context.Context, requesterID, peerID string) ([]model.Message, error) {
	return h.GetHistorySince(ctx, requesterID, peerID, nil)
}

// GetHistorySince is GetHistory restricted to messages created after *since.
// A nil since returns the full history.
func (h *HistoryService) GetHistorySince(ctx context.Context, requesterID, peerID string, since *time.Time) ([]model.Message, error) {
	requesterID = strings.TrimSpace(requesterID)
	peerID = strings.TrimSpace(peerID)

	if requesterID == "" {
		return nil, ErrAuthenticationMissing
	}
	if peerID == "" {
		return nil, NewError(ErrCodeValidation, "peerId is required")
	}

	msgs, err := h.store.Query(ctx, requesterID, peerID, since)
	if err != nil {
		h.logger.Errorf("query failed: requester=%s, peer=%s: %v", requesterID, peerID, err)
		return nil, err
	}

	h.logger.Debugf("history: requester=%s, peer=%s, count=%d", requesterID, peerID, len(msgs))
	return msgs, nil
}
