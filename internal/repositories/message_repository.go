package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"discussion-service/internal/models"
)

// MessageRepository defines interactions for persisted messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, topicID *int, senderID int, content, clientKey string) (models.Message, error)
	ListPage(ctx context.Context, chatID, page, limit int) ([]models.Message, models.Pagination, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. created_at is assigned by the database at
// persistence time, so concurrent sends order by commit, not call order.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, topicID *int, senderID int, content, clientKey string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, topic_id, sender_id, content, client_key) VALUES ($1, $2, $3, $4, $5)
         RETURNING id, chat_id, topic_id, sender_id, '' AS sender_name, content, client_key, edited, deleted, created_at`,
		chatID, topicID, senderID, content, clientKey).StructScan(&msg)
	return msg, err
}

// ListPage returns one history page for a chat. Page 1 holds the newest
// messages; rows within every page come back oldest-first, ordered by
// (created_at, id).
func (r *MessageRepo) ListPage(ctx context.Context, chatID, page, limit int) ([]models.Message, models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM messages WHERE chat_id=$1 AND deleted = FALSE`, chatID); err != nil {
		return nil, models.Pagination{}, err
	}

	query := `SELECT m.id, m.chat_id, m.topic_id, m.sender_id, COALESCE(u.username, '') AS sender_name,
            m.content, m.client_key, m.edited, m.deleted, m.created_at
        FROM messages m
        LEFT JOIN users u ON u.id = m.sender_id
        WHERE m.chat_id=$1 AND m.deleted = FALSE
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT $2 OFFSET $3`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, chatID, limit, (page-1)*limit); err != nil {
		return nil, models.Pagination{}, err
	}

	// Flip newest-first window to oldest-first for the client.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	pagination := models.Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: page*limit < total,
	}
	return msgs, pagination, nil
}
