package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/feedback-ledger/internal/models"
)

func TestActivityRepository_SetCountOverwrites(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SetCount(ctx, "alice", "2024-0", models.FeedbackKindComment, 4))

	activity, err := repo.Get(ctx, "alice", "2024-0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), activity.DocFeedbackCount)
	assert.Equal(t, int64(4), activity.CommentFeedbackCount)

	require.NoError(t, repo.SetCount(ctx, "alice", "2024-0", models.FeedbackKindComment, 2))
	require.NoError(t, repo.SetCount(ctx, "alice", "2024-0", models.FeedbackKindDocument, 1))

	activity, err = repo.Get(ctx, "alice", "2024-0")
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.DocFeedbackCount)
	assert.Equal(t, int64(2), activity.CommentFeedbackCount, "set must overwrite, not accumulate")
	assert.Equal(t, int64(5), activity.WeightedScore())

	// The owning member row exists so the foreign key holds.
	exists, err := NewMemberRepository(db).Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestActivityRepository_SetCountRejectsUnknownKind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewActivityRepository(db)

	err := repo.SetCount(context.Background(), "alice", "2024-0", "video", 1)
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestActivityRepository_Increment(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	activity, err := repo.Increment(ctx, "bob", "2024-1", models.FeedbackKindDocument, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.DocFeedbackCount)

	activity, err = repo.Increment(ctx, "bob", "2024-1", models.FeedbackKindDocument, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), activity.DocFeedbackCount)
	assert.Equal(t, int64(0), activity.CommentFeedbackCount)
}

func TestActivityRepository_Leaderboard(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SetCount(ctx, "docs", "2024-0", models.FeedbackKindDocument, 2))
	require.NoError(t, repo.SetCount(ctx, "docs", "2024-0", models.FeedbackKindComment, 1))
	require.NoError(t, repo.SetCount(ctx, "comments", "2024-0", models.FeedbackKindComment, 5))
	require.NoError(t, repo.SetCount(ctx, "idle", "2024-0", models.FeedbackKindComment, 0))
	require.NoError(t, repo.SetCount(ctx, "other-month", "2024-1", models.FeedbackKindDocument, 9))

	rows, err := repo.Leaderboard(ctx, "2024-0", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "docs", rows[0].MemberID)
	assert.Equal(t, int64(7), rows[0].WeightedScore)
	assert.Equal(t, "comments", rows[1].MemberID)
	assert.Equal(t, int64(5), rows[1].WeightedScore)

	limited, err := repo.Leaderboard(ctx, "2024-0", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	active, err := repo.CountActive(ctx, "2024-0")
	require.NoError(t, err)
	assert.Equal(t, int64(3), active)
}
