package mocks

import (
	"context"

	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
)

// MockMemberRepository is a simple mock for the member projections of the query layer.
type MockMemberRepository struct {
	GetByIDFunc         func(memberID string) (*models.Member, error)
	TopContributorsFunc func(limit int) ([]repository.ContributorRow, error)
	CountAheadFunc      func(total int64) (int64, error)
	TotalsFunc          func() (*repository.Totals, error)

	TopContributorsCalls int
}

func (m *MockMemberRepository) GetByID(_ context.Context, memberID string) (*models.Member, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(memberID)
	}
	return nil, repository.ErrNotFound
}

func (m *MockMemberRepository) TopContributors(_ context.Context, limit int) ([]repository.ContributorRow, error) {
	m.TopContributorsCalls++
	if m.TopContributorsFunc != nil {
		return m.TopContributorsFunc(limit)
	}
	return []repository.ContributorRow{}, nil
}

func (m *MockMemberRepository) CountAhead(_ context.Context, total int64) (int64, error) {
	if m.CountAheadFunc != nil {
		return m.CountAheadFunc(total)
	}
	return 0, nil
}

func (m *MockMemberRepository) Totals(_ context.Context) (*repository.Totals, error) {
	if m.TotalsFunc != nil {
		return m.TotalsFunc()
	}
	return &repository.Totals{}, nil
}

// MockActivityRepository is a simple mock for monthly activity projections.
type MockActivityRepository struct {
	GetFunc         func(memberID, monthKey string) (*models.MonthlyActivity, error)
	CountActiveFunc func(monthKey string) (int64, error)
}

func (m *MockActivityRepository) Get(_ context.Context, memberID, monthKey string) (*models.MonthlyActivity, error) {
	if m.GetFunc != nil {
		return m.GetFunc(memberID, monthKey)
	}
	return nil, repository.ErrNotFound
}

func (m *MockActivityRepository) CountActive(_ context.Context, monthKey string) (int64, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(monthKey)
	}
	return 0, nil
}

// MockPardonRepository is a simple mock for pardon lookups.
type MockPardonRepository struct {
	ExistsFunc func(memberID, monthKey string) (bool, error)
}

func (m *MockPardonRepository) Exists(_ context.Context, memberID, monthKey string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(memberID, monthKey)
	}
	return false, nil
}

// MockPurchaseRepository is a simple mock for purchase lookups.
type MockPurchaseRepository struct {
	ListForMemberFunc func(memberID string) ([]models.Purchase, error)
}

func (m *MockPurchaseRepository) ListForMember(_ context.Context, memberID string) ([]models.Purchase, error) {
	if m.ListForMemberFunc != nil {
		return m.ListForMemberFunc(memberID)
	}
	return []models.Purchase{}, nil
}
