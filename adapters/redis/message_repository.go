// Package redis provides a Redis implementation of peerchat.MessageRepository.
//
// Each conversation is a sorted set scored by CreatedAt in microseconds, with
// the JSON-encoded message as the member. A counter hands out IDs.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

// MessageRepository implements peerchat.MessageRepository on Redis.
type MessageRepository struct {
	client    *redis.Client
	keyPrefix string
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string) (*MessageRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeConfiguration, "invalid redis url", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "redis unreachable", err)
	}

	return NewWithClient(client, peerchat.DefaultTablePrefix), nil
}

// NewWithClient wraps an existing client. keyPrefix namespaces every key.
func NewWithClient(client *redis.Client, keyPrefix string) *MessageRepository {
	return &MessageRepository{client: client, keyPrefix: keyPrefix}
}

// Close closes the Redis connection.
func (r *MessageRepository) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection.
func (r *MessageRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *MessageRepository) seqKey() string {
	return r.keyPrefix + "message:seq"
}

func (r *MessageRepository) pairKey(pair string) string {
	return fmt.Sprintf("%spair:%s:messages", r.keyPrefix, pair)
}

// Insert persists a new message and assigns its ID.
func (r *MessageRepository) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	id, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return model.Message{}, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "failed to allocate message id", err)
	}
	m.ID = id
	m.PairKey = model.PairKey(m.FromUserID, m.ToUserID)

	data, err := json.Marshal(m)
	if err != nil {
		return model.Message{}, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "failed to encode message", err)
	}

	err = r.client.ZAdd(ctx, r.pairKey(m.PairKey), redis.Z{
		Score:  float64(m.CreatedAt.UnixMicro()),
		Member: string(data),
	}).Err()
	if err != nil {
		return model.Message{}, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "failed to insert message", err)
	}

	return m, nil
}

// FindByPair retrieves a conversation ordered by (CreatedAt, ID).
func (r *MessageRepository) FindByPair(ctx context.Context, pairKey string, since *time.Time) ([]model.Message, error) {
	minScore := "-inf"
	if since != nil {
		minScore = fmt.Sprintf("(%d", since.UnixMicro()) // exclusive
	}

	results, err := r.client.ZRangeByScore(ctx, r.pairKey(pairKey), &redis.ZRangeBy{
		Min: minScore,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "failed to find messages by pair", err)
	}

	messages := make([]model.Message, 0, len(results))
	for _, data := range results {
		msg, err := decode(data)
		if err != nil {
			return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "corrupt message in "+pairKey, err)
		}
		messages = append(messages, msg)
	}

	// members with equal scores come back in lexical order, not by ID
	model.SortMessages(messages)
	return messages, nil
}

func decode(data string) (model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return msg, err
	}
	msg.PairKey = model.PairKey(msg.FromUserID, msg.ToUserID)
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

var (
	_ peerchat.MessageRepository = (*MessageRepository)(nil)
	_ peerchat.Pinger            = (*MessageRepository)(nil)
)
