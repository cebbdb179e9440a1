package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
)

// BlockRepository abstracts directional user blocks.
type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID int, reason string) (models.UserBlock, error)
	Unblock(ctx context.Context, blockerID, blockedID int) error
	ListBlocked(ctx context.Context, blockerID int) ([]models.UserBlock, error)
	IsBlockedEitherWay(ctx context.Context, userID, otherID int) (bool, error)
}

// BlockRepo is a sqlx implementation of BlockRepository.
type BlockRepo struct {
	db *sqlx.DB
}

// NewBlockRepo constructs a BlockRepo.
func NewBlockRepo(db *sqlx.DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// Block records a directional block, unique per ordered pair.
func (r *BlockRepo) Block(ctx context.Context, blockerID, blockedID int, reason string) (models.UserBlock, error) {
	var block models.UserBlock
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO user_blocks (blocker_id, blocked_id, reason) VALUES ($1, $2, $3)
         ON CONFLICT (blocker_id, blocked_id) DO NOTHING
         RETURNING blocker_id, blocked_id, reason, created_at`,
		blockerID, blockedID, reason).StructScan(&block)
	if err != nil {
		return models.UserBlock{}, mapBlockInsertErr(err)
	}
	return block, nil
}

// mapBlockInsertErr distinguishes the DO NOTHING case, which yields no row
// when the pair already exists, from real query failures.
func mapBlockInsertErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrAlreadyBlocked
	}
	return err
}

// Unblock removes a directional block.
func (r *BlockRepo) Unblock(ctx context.Context, blockerID, blockedID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_blocks WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.NotFound("block not found")
	}
	return nil
}

// ListBlocked returns the users blocked by the caller.
func (r *BlockRepo) ListBlocked(ctx context.Context, blockerID int) ([]models.UserBlock, error) {
	var blocks []models.UserBlock
	err := r.db.SelectContext(ctx, &blocks,
		`SELECT blocker_id, blocked_id, reason, created_at FROM user_blocks WHERE blocker_id=$1 ORDER BY created_at DESC`, blockerID)
	return blocks, err
}

// IsBlockedEitherWay reports whether a block exists in either direction
// between the pair. Used to refuse new direct chats; existing history is
// never affected.
func (r *BlockRepo) IsBlockedEitherWay(ctx context.Context, userID, otherID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM user_blocks
            WHERE (blocker_id=$1 AND blocked_id=$2) OR (blocker_id=$2 AND blocked_id=$1))`, userID, otherID)
	return exists, err
}
