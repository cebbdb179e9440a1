package models

import "time"

// Chat kinds.
const (
	ChatKindGroup    = "group"
	ChatKindOneToOne = "one_to_one"
)

// Chat is a message container: group chats back a topic, one-to-one chats
// have exactly two members and no topic.
type Chat struct {
	ID            int        `db:"id" json:"id"`
	Kind          string     `db:"kind" json:"kind"`
	TopicID       *int       `db:"topic_id" json:"topic_id,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ChatMember records membership of a user in a chat. Active membership is the
// precondition for sending into and receiving from the chat.
type ChatMember struct {
	ChatID   int        `db:"chat_id" json:"chat_id"`
	UserID   int        `db:"user_id" json:"user_id"`
	IsActive bool       `db:"is_active" json:"is_active"`
	JoinedAt time.Time  `db:"joined_at" json:"joined_at"`
	LeftAt   *time.Time `db:"left_at" json:"left_at,omitempty"`
}

// ChatSummary is the per-user conversation listing row.
type ChatSummary struct {
	ChatID        int        `db:"id" json:"chat_id"`
	Kind          string     `db:"kind" json:"kind"`
	TopicID       *int       `db:"topic_id" json:"topic_id,omitempty"`
	TopicTitle    string     `db:"topic_title" json:"topic_title,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
}
