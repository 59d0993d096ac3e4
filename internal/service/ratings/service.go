// Package ratings aggregates peer quality ratings of feedback.
package ratings

import (
	"context"
	"errors"
	"fmt"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// DefaultMinRatings is the sample size a member needs to appear on the quality leaderboard.
const DefaultMinRatings = 3

// RatingRepository interface for rating operations.
type RatingRepository interface {
	Submit(ctx context.Context, rating *models.QualityRating) (*models.QualityRatings, error)
	ListForMember(ctx context.Context, ratedID string) ([]models.QualityRating, error)
	CountByRater(ctx context.Context, raterID string) (int64, error)
}

// MemberRepository interface for the quality leaderboard projection.
type MemberRepository interface {
	QualityLeaderboard(ctx context.Context, minRatings, limit int) ([]repository.QualityRow, error)
}

// Entry is a row of the quality leaderboard.
type Entry struct {
	Rank          int     `json:"rank"`
	MemberID      string  `json:"member_id"`
	TotalFeedback int64   `json:"total_feedback"`
	AvgQuality    float64 `json:"avg_quality"`
	TotalRatings  int64   `json:"total_ratings"`
}

// Service handles quality rating submission and ranking.
type Service struct {
	ratingRepo RatingRepository
	memberRepo MemberRepository
	minRatings int
	log        *logger.Logger
}

// NewService creates a new rating service with concrete repository types.
func NewService(
	ratingRepo *repository.RatingRepository,
	memberRepo *repository.MemberRepository,
	minRatings int,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(ratingRepo, memberRepo, minRatings, log)
}

// NewServiceWithInterfaces creates a new rating service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	ratingRepo RatingRepository,
	memberRepo MemberRepository,
	minRatings int,
	log *logger.Logger,
) *Service {
	if minRatings < 1 {
		minRatings = DefaultMinRatings
	}
	return &Service{
		ratingRepo: ratingRepo,
		memberRepo: memberRepo,
		minRatings: minRatings,
		log:        log,
	}
}

// Submit records a rating of a feedback message and returns the rated member's
// updated aggregate. It fails with repository.ErrInvalidRating when rating is
// outside [1,4] and repository.ErrDuplicateRating when the rater already rated
// that message; neither touches the aggregate.
func (s *Service) Submit(ctx context.Context, ratedID, raterID string, rating int, feedbackMessageID string) (*models.QualityRatings, error) {
	aggregate, err := s.ratingRepo.Submit(ctx, &models.QualityRating{
		RatedID:           ratedID,
		RaterID:           raterID,
		FeedbackMessageID: feedbackMessageID,
		Rating:            rating,
	})
	if err != nil {
		prommetrics.RecordRating(resultLabel(err))
		s.log.Warn().Err(err).
			Str("member_id", ratedID).
			Str("rater_id", raterID).
			Str("feedback_message_id", feedbackMessageID).
			Int("rating", rating).
			Msg("Rating rejected")
		return nil, fmt.Errorf("failed to submit rating: %w", err)
	}

	prommetrics.RecordRating("accepted")
	s.log.Info().
		Str("member_id", ratedID).
		Str("rater_id", raterID).
		Int("rating", rating).
		Int64("count", aggregate.Count).
		Float64("average", aggregate.Average).
		Msg("Rating recorded")
	return aggregate, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, repository.ErrInvalidRating):
		return "invalid"
	case errors.Is(err, repository.ErrDuplicateRating):
		return "duplicate"
	default:
		return "error"
	}
}

// QualityLeaderboard ranks contributors by average rating. Members need some
// feedback and at least the configured number of ratings to be listed.
// Storage failures yield an empty board.
func (s *Service) QualityLeaderboard(ctx context.Context, limit int) []Entry {
	rows, err := s.memberRepo.QualityLeaderboard(ctx, s.minRatings, limit)
	if err != nil {
		prommetrics.RecordStorageError("quality_leaderboard")
		s.log.Error().Err(err).Msg("Failed to build quality leaderboard")
		return []Entry{}
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{
			Rank:          i + 1,
			MemberID:      row.MemberID,
			TotalFeedback: row.TotalFeedbackAllTime,
			AvgQuality:    row.RatingAverage,
			TotalRatings:  row.RatingCount,
		})
	}
	return entries
}

// Received returns the ratings a member received, newest first.
func (s *Service) Received(ctx context.Context, memberID string) []models.QualityRating {
	ratings, err := s.ratingRepo.ListForMember(ctx, memberID)
	if err != nil {
		prommetrics.RecordStorageError("list_ratings")
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to list ratings")
		return []models.QualityRating{}
	}
	return ratings
}

// GivenCount returns how many ratings a member has submitted.
func (s *Service) GivenCount(ctx context.Context, memberID string) int64 {
	count, err := s.ratingRepo.CountByRater(ctx, memberID)
	if err != nil {
		prommetrics.RecordStorageError("count_ratings_given")
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to count ratings given")
		return 0
	}
	return count
}
