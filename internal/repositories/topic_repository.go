package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
)

// TopicRepository abstracts topic persistence.
type TopicRepository interface {
	CreateTopic(ctx context.Context, title, description string, creatorID int) (models.Topic, models.Chat, error)
	GetTopic(ctx context.Context, topicID int) (models.Topic, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)
	DeactivateTopic(ctx context.Context, topicID int) error
}

// TopicRepo is a sqlx implementation of TopicRepository.
type TopicRepo struct {
	db *sqlx.DB
}

// NewTopicRepo constructs a TopicRepo.
func NewTopicRepo(db *sqlx.DB) *TopicRepo {
	return &TopicRepo{db: db}
}

// CreateTopic creates a topic and its backing group chat in one transaction.
// The creator becomes the chat's first active member.
func (r *TopicRepo) CreateTopic(ctx context.Context, title, description string, creatorID int) (models.Topic, models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Topic{}, models.Chat{}, err
	}
	defer tx.Rollback()

	var topic models.Topic
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO topics (title, description, creator_id) VALUES ($1, $2, $3)
         RETURNING id, title, description, creator_id, is_active, created_at`,
		title, description, creatorID).StructScan(&topic); err != nil {
		return models.Topic{}, models.Chat{}, err
	}

	var chat models.Chat
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO chats (kind, topic_id) VALUES ($1, $2)
         RETURNING id, kind, topic_id, last_message_at, created_at`,
		models.ChatKindGroup, topic.ID).StructScan(&chat); err != nil {
		return models.Topic{}, models.Chat{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`,
		chat.ID, creatorID); err != nil {
		return models.Topic{}, models.Chat{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Topic{}, models.Chat{}, err
	}
	return topic, chat, nil
}

// GetTopic fetches an active topic by id.
func (r *TopicRepo) GetTopic(ctx context.Context, topicID int) (models.Topic, error) {
	var topic models.Topic
	err := r.db.GetContext(ctx, &topic,
		`SELECT id, title, description, creator_id, is_active, created_at FROM topics WHERE id=$1 AND is_active = TRUE`, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Topic{}, apperrors.ErrTopicNotFound
	}
	return topic, err
}

// ListTopics returns all active topics, newest first.
func (r *TopicRepo) ListTopics(ctx context.Context) ([]models.Topic, error) {
	var topics []models.Topic
	err := r.db.SelectContext(ctx, &topics,
		`SELECT id, title, description, creator_id, is_active, created_at FROM topics WHERE is_active = TRUE ORDER BY created_at DESC`)
	return topics, err
}

// DeactivateTopic soft-deletes a topic. Rows are never hard-deleted.
func (r *TopicRepo) DeactivateTopic(ctx context.Context, topicID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE topics SET is_active = FALSE WHERE id=$1 AND is_active = TRUE`, topicID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrTopicNotFound
	}
	return nil
}
