// Package activity tracks per-member monthly contribution counters.
package activity

import (
	"context"
	"errors"
	"fmt"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// ActivityRepository interface for monthly counter operations.
type ActivityRepository interface {
	Get(ctx context.Context, memberID, monthKey string) (*models.MonthlyActivity, error)
	SetCount(ctx context.Context, memberID, monthKey, kind string, count int64) error
	Increment(ctx context.Context, memberID, monthKey, kind string, delta int64) (*models.MonthlyActivity, error)
	Leaderboard(ctx context.Context, monthKey string, limit int) ([]repository.ActivityScore, error)
}

// Counts are a member's contributions in one month.
type Counts struct {
	Docs     int64 `json:"docs"`
	Comments int64 `json:"comments"`
}

// WeightedScore returns the derived monthly score.
func (c Counts) WeightedScore() int64 {
	return models.WeightedScore(c.Docs, c.Comments)
}

// Entry is a row of the monthly leaderboard.
type Entry struct {
	Rank          int    `json:"rank"`
	MemberID      string `json:"member_id"`
	WeightedScore int64  `json:"weighted_score"`
	Docs          int64  `json:"docs"`
	Comments      int64  `json:"comments"`
}

// ErrInvalidCount is returned when a counter would be set below zero.
var ErrInvalidCount = errors.New("counter must not be negative")

// Service handles monthly activity counters.
type Service struct {
	repo ActivityRepository
	log  *logger.Logger
}

// NewService creates a new activity service with concrete repository types.
func NewService(repo *repository.ActivityRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, log)
}

// NewServiceWithInterfaces creates a new activity service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo ActivityRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Get returns the member's counters for the month, zero when absent or unreadable.
func (s *Service) Get(ctx context.Context, memberID, monthKey string) Counts {
	row, err := s.repo.Get(ctx, memberID, monthKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			prommetrics.RecordStorageError("get_activity")
			s.log.Warn().Err(err).
				Str("member_id", memberID).
				Str("month_key", monthKey).
				Msg("Failed to load monthly activity, using zero counts")
		}
		return Counts{}
	}
	return Counts{Docs: row.DocFeedbackCount, Comments: row.CommentFeedbackCount}
}

// Set overwrites the named counter for the month. The engine does no
// arithmetic: callers pass the new absolute total.
func (s *Service) Set(ctx context.Context, memberID, monthKey, kind string, count int64) error {
	if _, ok := models.CounterColumn(kind); !ok {
		return fmt.Errorf("unknown feedback kind %q: %w", kind, repository.ErrConstraintViolation)
	}
	if count < 0 {
		return fmt.Errorf("failed to set %s count to %d: %w", kind, count, ErrInvalidCount)
	}

	if err := s.repo.SetCount(ctx, memberID, monthKey, kind, count); err != nil {
		prommetrics.RecordStorageError("set_activity")
		return fmt.Errorf("failed to set monthly activity: %w", err)
	}

	s.log.Debug().
		Str("member_id", memberID).
		Str("month_key", monthKey).
		Str("kind", kind).
		Int64("count", count).
		Msg("Monthly counter set")
	return nil
}

// Increment adds one contribution of kind to the month in a single transaction
// and returns the updated counters.
func (s *Service) Increment(ctx context.Context, memberID, monthKey, kind string) (Counts, error) {
	if _, ok := models.CounterColumn(kind); !ok {
		return Counts{}, fmt.Errorf("unknown feedback kind %q: %w", kind, repository.ErrConstraintViolation)
	}

	row, err := s.repo.Increment(ctx, memberID, monthKey, kind, 1)
	if err != nil {
		prommetrics.RecordStorageError("increment_activity")
		return Counts{}, fmt.Errorf("failed to increment monthly activity: %w", err)
	}

	prommetrics.RecordActivityIncrement(kind)
	return Counts{Docs: row.DocFeedbackCount, Comments: row.CommentFeedbackCount}, nil
}

// MonthlyLeaderboard ranks members by weighted score for the month.
// Only positive scores are listed; at most limit entries, all when limit is 0.
// Storage failures yield an empty board.
func (s *Service) MonthlyLeaderboard(ctx context.Context, monthKey string, limit int) []Entry {
	rows, err := s.repo.Leaderboard(ctx, monthKey, limit)
	if err != nil {
		prommetrics.RecordStorageError("monthly_leaderboard")
		s.log.Error().Err(err).Str("month_key", monthKey).Msg("Failed to build monthly leaderboard")
		return []Entry{}
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{
			Rank:          i + 1,
			MemberID:      row.MemberID,
			WeightedScore: row.WeightedScore,
			Docs:          row.DocFeedbackCount,
			Comments:      row.CommentFeedbackCount,
		})
	}
	return entries
}
