package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/feedback-ledger/internal/models"
)

// RatingRepository handles peer quality ratings and the aggregate kept on members.
type RatingRepository struct {
	db *DB
}

// NewRatingRepository creates a new rating repository.
func NewRatingRepository(db *DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// RoundAverage rounds a rating average to the stored fixed-point precision.
func RoundAverage(sum, count int64) float64 {
	if count == 0 {
		return models.DefaultRatingAverage
	}
	return math.Round(float64(sum)/float64(count)*100) / 100
}

// Submit records a rating and folds it into the rated member's aggregate in
// one transaction. It fails with ErrInvalidRating for out-of-range values and
// ErrDuplicateRating when the rater already rated this message of the member.
func (r *RatingRepository) Submit(ctx context.Context, rating *models.QualityRating) (*models.QualityRatings, error) {
	if !models.IsValidRating(rating.Rating) {
		return nil, fmt.Errorf("rating %d outside [%d,%d]: %w",
			rating.Rating, models.MinRating, models.MaxRating, ErrInvalidRating)
	}

	var aggregate models.QualityRatings
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.QualityRating{}).
			Where("rated_id = ? AND rater_id = ? AND feedback_message_id = ?",
				rating.RatedID, rating.RaterID, rating.FeedbackMessageID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateRating
		}

		if err := ensureMember(tx, rating.RatedID); err != nil {
			return err
		}
		if err := ensureMember(tx, rating.RaterID); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(rating).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRating
			}
			return err
		}

		// Bump the raw pair first; the row lock it takes serialises concurrent submitters.
		err = tx.Model(&models.Member{}).
			Where("member_id = ?", rating.RatedID).
			Updates(map[string]interface{}{
				"rating_count": gorm.Expr("rating_count + 1"),
				"rating_sum":   gorm.Expr("rating_sum + ?", rating.Rating),
			}).Error
		if err != nil {
			return err
		}

		var member models.Member
		if err := tx.Where("member_id = ?", rating.RatedID).First(&member).Error; err != nil {
			return err
		}

		aggregate = member.QualityRatings
		aggregate.Average = RoundAverage(aggregate.Sum, aggregate.Count)
		return tx.Model(&models.Member{}).
			Where("member_id = ?", rating.RatedID).
			Update("rating_average", aggregate.Average).Error
	})
	if errors.Is(err, ErrDuplicateRating) {
		return nil, fmt.Errorf("rating of %s by %s on %s: %w",
			rating.RatedID, rating.RaterID, rating.FeedbackMessageID, ErrDuplicateRating)
	}
	if err != nil {
		return nil, wrap("submit rating for "+rating.RatedID, err)
	}
	return &aggregate, nil
}

// ListForMember returns the ratings a member received, newest first.
func (r *RatingRepository) ListForMember(ctx context.Context, ratedID string) ([]models.QualityRating, error) {
	var ratings []models.QualityRating
	err := r.db.WithContext(ctx).
		Where("rated_id = ?", ratedID).
		Order("created_at DESC, id DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, wrap("list ratings for "+ratedID, err)
	}
	return ratings, nil
}

// CountByRater returns how many ratings a member has given.
func (r *RatingRepository) CountByRater(ctx context.Context, raterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.QualityRating{}).
		Where("rater_id = ?", raterID).
		Count(&count).Error
	if err != nil {
		return 0, wrap("count ratings by "+raterID, err)
	}
	return count, nil
}
