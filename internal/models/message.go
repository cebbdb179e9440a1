package models

import "time"

// Message is a persisted chat message. Immutable once created apart from the
// edited/deleted soft flags. Ordering key is (created_at, id).
type Message struct {
	ID         int       `db:"id" json:"id"`
	ChatID     int       `db:"chat_id" json:"chat_id"`
	TopicID    *int      `db:"topic_id" json:"topic_id,omitempty"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	SenderName string    `db:"sender_name" json:"sender_name,omitempty"`
	Content    string    `db:"content" json:"content"`
	ClientKey  string    `db:"client_key" json:"client_key,omitempty"`
	Edited     bool      `db:"edited" json:"edited"`
	Deleted    bool      `db:"deleted" json:"deleted"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Before reports whether m sorts before other under the (created_at, id)
// ordering every consumer of a conversation must apply.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Pagination describes a history page.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}
