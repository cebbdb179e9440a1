package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
)

// UserRepository mirrors verified identities into the local store.
type UserRepository interface {
	EnsureUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// EnsureUser provisions a minimal user row from verified claims. Existing rows
// only get their username/email refreshed, and an empty claim never overwrites
// a stored value; suspension state is never touched.
func (r *UserRepo) EnsureUser(ctx context.Context, user models.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, email, role) VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
            email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)`,
		user.ID, user.Username, user.Email, user.Role)
	return err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, email, role, suspended, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, err
}
