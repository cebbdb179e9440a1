package repositories

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discussion-service/internal/apperrors"
)

func TestMapBlockInsertErr(t *testing.T) {
	// The insert's ON CONFLICT DO NOTHING returns no row for a duplicate
	// pair; only that case is a conflict.
	require.ErrorIs(t, mapBlockInsertErr(sql.ErrNoRows), apperrors.ErrAlreadyBlocked)
	require.ErrorIs(t, mapBlockInsertErr(fmt.Errorf("scan: %w", sql.ErrNoRows)), apperrors.ErrAlreadyBlocked)

	connErr := fmt.Errorf("dial tcp 127.0.0.1:5432: connection refused")
	got := mapBlockInsertErr(connErr)
	assert.Equal(t, connErr, got, "query failures must surface as-is, not as a conflict")
	assert.NotErrorIs(t, got, apperrors.ErrAlreadyBlocked)
}
