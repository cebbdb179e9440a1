package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
)

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetChatByTopic(ctx context.Context, topicID int) (models.Chat, error)
	CreateOrGetDirectChat(ctx context.Context, userID, otherID int) (models.Chat, error)
	IsActiveMember(ctx context.Context, chatID, userID int) (bool, error)
	EnsureActiveMember(ctx context.Context, chatID, userID int) error
	DeactivateMember(ctx context.Context, chatID, userID int) error
	TouchLastMessage(ctx context.Context, chatID int, at time.Time) error
	ListSummaries(ctx context.Context, userID int) ([]models.ChatSummary, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, kind, topic_id, last_message_at, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, apperrors.ErrChatNotFound
	}
	return chat, err
}

// GetChatByTopic resolves the group chat backing a topic.
func (r *ChatRepo) GetChatByTopic(ctx context.Context, topicID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, kind, topic_id, last_message_at, created_at FROM chats WHERE topic_id=$1`, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, apperrors.ErrChatNotFound
	}
	return chat, err
}

// CreateOrGetDirectChat returns the one-to-one chat between the two users,
// creating it if missing. A pair has at most one direct chat.
func (r *ChatRepo) CreateOrGetDirectChat(ctx context.Context, userID, otherID int) (models.Chat, error) {
	if userID == otherID {
		return models.Chat{}, apperrors.ErrSelfChat
	}
	pair := []int{userID, otherID}
	sort.Ints(pair)

	var chat models.Chat
	query := `SELECT c.id, c.kind, c.topic_id, c.last_message_at, c.created_at FROM chats c
        WHERE c.kind = $1
        AND EXISTS (SELECT 1 FROM chat_members m WHERE m.chat_id = c.id AND m.user_id = $2)
        AND EXISTS (SELECT 1 FROM chat_members m WHERE m.chat_id = c.id AND m.user_id = $3)`
	err := r.db.GetContext(ctx, &chat, query, models.ChatKindOneToOne, pair[0], pair[1])
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO chats (kind) VALUES ($1) RETURNING id, kind, topic_id, last_message_at, created_at`,
		models.ChatKindOneToOne).StructScan(&chat); err != nil {
		return models.Chat{}, err
	}
	for _, memberID := range pair {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, memberID); err != nil {
			return models.Chat{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// IsActiveMember checks for an active membership row.
func (r *ChatRepo) IsActiveMember(ctx context.Context, chatID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2 AND is_active = TRUE)`, chatID, userID)
	return exists, err
}

// EnsureActiveMember upserts an active membership row. The composite primary
// key keeps repeated auto-joins from duplicating the row.
func (r *ChatRepo) EnsureActiveMember(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET is_active = TRUE, left_at = NULL`, chatID, userID)
	return err
}

// DeactivateMember marks a membership inactive, recording when the user left.
func (r *ChatRepo) DeactivateMember(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_members SET is_active = FALSE, left_at = NOW() WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return err
}

// TouchLastMessage advances the chat's last_message_at watermark.
func (r *ChatRepo) TouchLastMessage(ctx context.Context, chatID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chats SET last_message_at = $2 WHERE id=$1 AND (last_message_at IS NULL OR last_message_at < $2)`, chatID, at)
	return err
}

// ListSummaries returns the chats the user actively belongs to, most recently
// active first.
func (r *ChatRepo) ListSummaries(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.kind, c.topic_id, COALESCE(t.title, '') AS topic_title, c.last_message_at
        FROM chats c
        JOIN chat_members m ON m.chat_id = c.id AND m.user_id = $1 AND m.is_active = TRUE
        LEFT JOIN topics t ON t.id = c.topic_id
        WHERE c.topic_id IS NULL OR t.is_active = TRUE
        ORDER BY c.last_message_at DESC NULLS LAST, c.id DESC`
	var summaries []models.ChatSummary
	err := r.db.SelectContext(ctx, &summaries, query, userID)
	return summaries, err
}
