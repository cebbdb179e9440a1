package models

import "time"

// User is the local mirror of a verified identity. Rows are auto-provisioned
// on first contact from the claims the verifier yields.
type User struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email,omitempty"`
	Role      string    `db:"role" json:"role"`
	Suspended bool      `db:"suspended" json:"suspended"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserBlock is a directional block of one user by another.
type UserBlock struct {
	BlockerID int       `db:"blocker_id" json:"blocker_id"`
	BlockedID int       `db:"blocked_id" json:"blocked_id"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
