package relica

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
	"github.com/coregx/relica"
)

// MessageRepository implements peerchat.MessageRepository using Relica.
type MessageRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	tablePrefix string
}

// NewMessageRepository creates a new MessageRepository with default table prefix.
func NewMessageRepository(sqlDB *sql.DB, driverName string) *MessageRepository {
	return NewMessageRepositoryWithPrefix(sqlDB, driverName, peerchat.DefaultTablePrefix)
}

// NewMessageRepositoryWithPrefix creates a new MessageRepository with custom table prefix.
func NewMessageRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *MessageRepository {
	return &MessageRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		tablePrefix: prefix,
	}
}

func (r *MessageRepository) tableName() string {
	return r.tablePrefix + "message"
}

// Insert persists a new message. The database assigns the ID.
func (r *MessageRepository) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	m.ID = 0
	// m.ID is auto-populated by Model().Insert()
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
	if err != nil {
		return model.Message{}, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "failed to insert message", err)
	}
	return m, nil
}

// FindByPair retrieves a conversation ordered by (created_at, id).
func (r *MessageRepository) FindByPair(ctx context.Context, pairKey string, since *time.Time) ([]model.Message, error) {
	var messages []model.Message

	q := r.db.WithContext(ctx).Select("*").From(r.tableName())
	if since != nil {
		q = q.Where("pair_key = ? AND created_at > ?", pairKey, since.UTC())
	} else {
		q = q.Where("pair_key = ?", pairKey)
	}

	err := q.OrderBy("created_at ASC, id ASC").All(&messages)
	if err != nil {
		return nil, peerchat.NewErrorWithCause(peerchat.ErrCodeStorage, "failed to find messages by pair", err)
	}

	for i := range messages {
		messages[i].CreatedAt = messages[i].CreatedAt.UTC()
	}
	return messages, nil
}

// Ping checks the database connection.
func (r *MessageRepository) Ping(ctx context.Context) error {
	return r.sqlDB.PingContext(ctx)
}
