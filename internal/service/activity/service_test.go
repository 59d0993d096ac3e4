package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
	"github.com/aimd54/feedback-ledger/test/testdb"
)

const month = "2024-1"

type unavailableRepository struct{}

func (unavailableRepository) Get(context.Context, string, string) (*models.MonthlyActivity, error) {
	return nil, repository.ErrStorageUnavailable
}

func (unavailableRepository) SetCount(context.Context, string, string, string, int64) error {
	return repository.ErrStorageUnavailable
}

func (unavailableRepository) Increment(context.Context, string, string, string, int64) (*models.MonthlyActivity, error) {
	return nil, repository.ErrStorageUnavailable
}

func (unavailableRepository) Leaderboard(context.Context, string, int) ([]repository.ActivityScore, error) {
	return nil, repository.ErrStorageUnavailable
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewActivityRepository(testdb.New(t)), logger.Nop())
}

func TestGet_ZeroWhenAbsent(t *testing.T) {
	svc := newTestService(t)

	counts := svc.Get(context.Background(), "alice", month)
	assert.Equal(t, Counts{}, counts)
	assert.Zero(t, counts.WeightedScore())
}

func TestSet_OverwritesNamedCounter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "alice", month, models.FeedbackKindDocument, 4))
	assert.Equal(t, Counts{Docs: 4}, svc.Get(ctx, "alice", month))

	require.NoError(t, svc.Set(ctx, "alice", month, models.FeedbackKindComment, 2))
	require.NoError(t, svc.Set(ctx, "alice", month, models.FeedbackKindDocument, 1))

	counts := svc.Get(ctx, "alice", month)
	assert.Equal(t, Counts{Docs: 1, Comments: 2}, counts)
	assert.Equal(t, int64(5), counts.WeightedScore())
}

func TestSet_RejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Set(ctx, "alice", month, "reaction", 1)
	assert.ErrorIs(t, err, repository.ErrConstraintViolation)

	err = svc.Set(ctx, "alice", month, models.FeedbackKindComment, -1)
	assert.ErrorIs(t, err, ErrInvalidCount)

	assert.Equal(t, Counts{}, svc.Get(ctx, "alice", month))
}

func TestIncrement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Increment(ctx, "alice", month, models.FeedbackKindComment)
	require.NoError(t, err)
	counts, err := svc.Increment(ctx, "alice", month, models.FeedbackKindComment)
	require.NoError(t, err)

	assert.Equal(t, Counts{Comments: 2}, counts)
	assert.Equal(t, Counts{}, svc.Get(ctx, "alice", "2024-2"))
}

func TestMonthlyLeaderboard_RanksByWeightedScore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "bob", month, models.FeedbackKindComment, 5))
	require.NoError(t, svc.Set(ctx, "alice", month, models.FeedbackKindDocument, 2))
	require.NoError(t, svc.Set(ctx, "alice", month, models.FeedbackKindComment, 1))
	require.NoError(t, svc.Set(ctx, "carol", month, models.FeedbackKindComment, 0))
	require.NoError(t, svc.Set(ctx, "dave", "2024-0", models.FeedbackKindDocument, 9))

	board := svc.MonthlyLeaderboard(ctx, month, 10)
	require.Len(t, board, 2)

	assert.Equal(t, Entry{Rank: 1, MemberID: "alice", WeightedScore: 7, Docs: 2, Comments: 1}, board[0])
	assert.Equal(t, Entry{Rank: 2, MemberID: "bob", WeightedScore: 5, Docs: 0, Comments: 5}, board[1])

	assert.Len(t, svc.MonthlyLeaderboard(ctx, month, 1), 1)
}

func TestStorageFailures(t *testing.T) {
	svc := NewServiceWithInterfaces(unavailableRepository{}, logger.Nop())
	ctx := context.Background()

	assert.Equal(t, Counts{}, svc.Get(ctx, "alice", month))
	assert.Empty(t, svc.MonthlyLeaderboard(ctx, month, 5))

	err := svc.Set(ctx, "alice", month, models.FeedbackKindDocument, 1)
	assert.True(t, errors.Is(err, repository.ErrStorageUnavailable))

	_, err = svc.Increment(ctx, "alice", month, models.FeedbackKindDocument)
	assert.True(t, errors.Is(err, repository.ErrStorageUnavailable))
}
