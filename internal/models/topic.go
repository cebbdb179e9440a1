package models

import "time"

// Topic is an administratively created discussion subject. Each topic owns
// exactly one group chat, created in the same transaction. Topics are soft
// deleted by clearing is_active, never removed.
type Topic struct {
	ID          int       `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatorID   int       `db:"creator_id" json:"creator_id"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
