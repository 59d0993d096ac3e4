package pardons

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
	"github.com/aimd54/feedback-ledger/test/testdb"
)

type unavailableRepository struct{}

func (unavailableRepository) Get(context.Context, string, string) (*models.Pardon, error) {
	return nil, repository.ErrStorageUnavailable
}

func (unavailableRepository) Exists(context.Context, string, string) (bool, error) {
	return false, repository.ErrStorageUnavailable
}

func (unavailableRepository) Upsert(context.Context, string, string, string) error {
	return repository.ErrStorageUnavailable
}

func (unavailableRepository) Delete(context.Context, string, string) (bool, error) {
	return false, repository.ErrStorageUnavailable
}

func (unavailableRepository) ListForMonth(context.Context, string) ([]models.Pardon, error) {
	return nil, repository.ErrStorageUnavailable
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewPardonRepository(testdb.New(t)), "", logger.Nop())
}

func TestGrant_ScopedToMonth(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "alice", "2024-0", "medical leave"))

	assert.True(t, svc.IsPardoned(ctx, "alice", "2024-0"))
	assert.False(t, svc.IsPardoned(ctx, "alice", "2024-1"))
	assert.False(t, svc.IsPardoned(ctx, "bob", "2024-0"))
}

func TestGrant_DefaultReasonAndOverwrite(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "alice", "2024-0", ""))
	reason, ok := svc.Reason(ctx, "alice", "2024-0")
	require.True(t, ok)
	assert.Equal(t, models.DefaultPardonReason, reason)

	require.NoError(t, svc.Grant(ctx, "alice", "2024-0", "travel"))
	reason, ok = svc.Reason(ctx, "alice", "2024-0")
	require.True(t, ok)
	assert.Equal(t, "travel", reason)

	assert.Len(t, svc.ListForMonth(ctx, "2024-0"), 1)
}

func TestGrant_ConfiguredDefaultReason(t *testing.T) {
	svc := NewService(repository.NewPardonRepository(testdb.New(t)), "moderator", logger.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "alice", "2024-0", ""))
	reason, _ := svc.Reason(ctx, "alice", "2024-0")
	assert.Equal(t, "moderator", reason)
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	removed, err := svc.Revoke(ctx, "alice", "2024-0")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, svc.Grant(ctx, "alice", "2024-0", ""))
	removed, err = svc.Revoke(ctx, "alice", "2024-0")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, svc.IsPardoned(ctx, "alice", "2024-0"))

	_, ok := svc.Reason(ctx, "alice", "2024-0")
	assert.False(t, ok)
}

func TestListForMonth(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "alice", "2024-0", "a"))
	require.NoError(t, svc.Grant(ctx, "bob", "2024-0", "b"))
	require.NoError(t, svc.Grant(ctx, "carol", "2024-1", "c"))

	entries := svc.ListForMonth(ctx, "2024-0")
	assert.ElementsMatch(t, []Entry{
		{MemberID: "alice", Reason: "a"},
		{MemberID: "bob", Reason: "b"},
	}, entries)
	assert.Empty(t, svc.ListForMonth(ctx, "2023-11"))
}

func TestStorageFailures(t *testing.T) {
	svc := NewServiceWithInterfaces(unavailableRepository{}, "", logger.Nop())
	ctx := context.Background()

	assert.False(t, svc.IsPardoned(ctx, "alice", "2024-0"))
	assert.Empty(t, svc.ListForMonth(ctx, "2024-0"))

	_, ok := svc.Reason(ctx, "alice", "2024-0")
	assert.False(t, ok)

	// Exemption writes must fail loudly.
	assert.ErrorIs(t, svc.Grant(ctx, "alice", "2024-0", ""), repository.ErrStorageUnavailable)
	_, err := svc.Revoke(ctx, "alice", "2024-0")
	assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
}
