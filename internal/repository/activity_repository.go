package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/feedback-ledger/internal/models"
)

// ActivityRepository handles per-month contribution counters.
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new monthly activity repository.
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

var activityKey = []clause.Column{{Name: "member_id"}, {Name: "month_key"}}

// Get retrieves a member's counters for a month. Returns ErrNotFound when absent.
func (r *ActivityRepository) Get(ctx context.Context, memberID, monthKey string) (*models.MonthlyActivity, error) {
	var activity models.MonthlyActivity
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND month_key = ?", memberID, monthKey).
		First(&activity).Error
	if err != nil {
		return nil, wrap(fmt.Sprintf("get activity %s/%s", memberID, monthKey), err)
	}
	return &activity, nil
}

// SetCount overwrites one counter of the month, creating the row with the
// other counter at zero when missing.
func (r *ActivityRepository) SetCount(ctx context.Context, memberID, monthKey, kind string, count int64) error {
	column, ok := models.CounterColumn(kind)
	if !ok {
		return fmt.Errorf("unknown feedback kind %q: %w", kind, ErrConstraintViolation)
	}

	row := &models.MonthlyActivity{MemberID: memberID, MonthKey: monthKey}
	if kind == models.FeedbackKindDocument {
		row.DocFeedbackCount = count
	} else {
		row.CommentFeedbackCount = count
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, memberID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   activityKey,
			DoUpdates: clause.AssignmentColumns([]string{column}),
		}).Create(row).Error
	})
	if err != nil {
		return wrap(fmt.Sprintf("set %s count %s/%s", kind, memberID, monthKey), err)
	}
	return nil
}

// Increment adds delta to one counter of the month and returns the updated row.
func (r *ActivityRepository) Increment(ctx context.Context, memberID, monthKey, kind string, delta int64) (*models.MonthlyActivity, error) {
	column, ok := models.CounterColumn(kind)
	if !ok {
		return nil, fmt.Errorf("unknown feedback kind %q: %w", kind, ErrConstraintViolation)
	}

	row := &models.MonthlyActivity{MemberID: memberID, MonthKey: monthKey}
	if kind == models.FeedbackKindDocument {
		row.DocFeedbackCount = delta
	} else {
		row.CommentFeedbackCount = delta
	}

	var updated models.MonthlyActivity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, memberID); err != nil {
			return err
		}
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: activityKey,
			DoUpdates: clause.Assignments(map[string]interface{}{
				column: gorm.Expr("monthly_activity."+column+" + ?", delta),
			}),
		}).Create(row).Error
		if err != nil {
			return err
		}
		return tx.Where("member_id = ? AND month_key = ?", memberID, monthKey).First(&updated).Error
	})
	if err != nil {
		return nil, wrap(fmt.Sprintf("increment %s count %s/%s", kind, memberID, monthKey), err)
	}
	return &updated, nil
}

// ActivityScore is a leaderboard row for one member in one month.
type ActivityScore struct {
	MemberID             string
	DocFeedbackCount     int64
	CommentFeedbackCount int64
	WeightedScore        int64
}

// Leaderboard returns members with a positive weighted score for the month, highest first.
func (r *ActivityRepository) Leaderboard(ctx context.Context, monthKey string, limit int) ([]ActivityScore, error) {
	score := fmt.Sprintf("(doc_feedback_count * %d + comment_feedback_count)", models.DocumentWeight)

	var rows []ActivityScore
	query := r.db.WithContext(ctx).Model(&models.MonthlyActivity{}).
		Select("member_id, doc_feedback_count, comment_feedback_count, "+score+" AS weighted_score").
		Where("month_key = ? AND "+score+" > 0", monthKey).
		Order("weighted_score DESC, member_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, wrap("list monthly leaderboard "+monthKey, err)
	}
	return rows, nil
}

// CountActive returns the number of distinct members with activity in the month.
func (r *ActivityRepository) CountActive(ctx context.Context, monthKey string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MonthlyActivity{}).
		Where("month_key = ?", monthKey).
		Distinct("member_id").
		Count(&count).Error
	if err != nil {
		return 0, wrap("count active members "+monthKey, err)
	}
	return count, nil
}
