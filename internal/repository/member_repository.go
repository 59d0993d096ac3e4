package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/feedback-ledger/internal/models"
)

// MemberRepository handles member-related database operations.
type MemberRepository struct {
	db *DB
}

// NewMemberRepository creates a new member repository.
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// GetByID retrieves a member by ID. Returns ErrNotFound when absent.
func (r *MemberRepository) GetByID(ctx context.Context, memberID string) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&member).Error; err != nil {
		return nil, wrap("get member "+memberID, err)
	}
	return &member, nil
}

// Exists reports whether a member row exists.
func (r *MemberRepository) Exists(ctx context.Context, memberID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("member_id = ?", memberID).
		Count(&count).Error
	if err != nil {
		return false, wrap("check member "+memberID, err)
	}
	return count > 0, nil
}

// Upsert writes the supplied fields of update. A missing member is inserted
// with zero for every omitted counter; an existing one only has the supplied
// columns overwritten. created_at is never touched on conflict.
func (r *MemberRepository) Upsert(ctx context.Context, memberID string, update models.MemberUpdate) error {
	tx := r.db.WithContext(ctx)
	row := newMemberRow(tx, memberID)
	update.Apply(row)

	// Assign the supplied values directly: a zero value is omitted from the
	// INSERT column list, so excluded.<col> would not carry it.
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "member_id"}}}
	if values := update.Values(); len(values) > 0 {
		values["updated_at"] = gorm.Expr("excluded.updated_at")
		onConflict.DoUpdates = clause.Assignments(values)
	} else {
		onConflict.DoNothing = true
	}

	if err := tx.Clauses(onConflict).Create(row).Error; err != nil {
		return wrap("upsert member "+memberID, err)
	}
	return nil
}

// Increment atomically adds the given deltas to a member's counters, creating
// the member if needed. Zero deltas are left out of the statement.
func (r *MemberRepository) Increment(ctx context.Context, memberID string, deltas map[string]int64, lastActive int64) error {
	tx := r.db.WithContext(ctx)
	row := newMemberRow(tx, memberID)
	assignments := make(map[string]interface{}, len(deltas)+2)
	for col, delta := range deltas {
		switch col {
		case "total_feedback_all_time":
			row.TotalFeedbackAllTime = delta
		case "current_credits":
			row.CurrentCredits = delta
		case "chapter_leases":
			row.ChapterLeases = delta
		case "bookshelf_posts":
			row.BookshelfPosts = delta
		default:
			return fmt.Errorf("unknown member counter %q: %w", col, ErrConstraintViolation)
		}
		assignments[col] = gorm.Expr("members."+col+" + ?", delta)
	}
	if lastActive > 0 {
		row.LastActive = lastActive
		assignments["last_active"] = lastActive
	}
	assignments["updated_at"] = gorm.Expr("excluded.updated_at")

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(row).Error
	if err != nil {
		return wrap("increment member "+memberID, err)
	}
	return nil
}

// Delete removes a member and every dependent row keyed by the member ID,
// including ratings the member gave or received. Returns whether the member row existed.
func (r *MemberRepository) Delete(ctx context.Context, memberID string) (bool, error) {
	var existed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []interface{}{
			&models.MonthlyActivity{},
			&models.Pardon{},
			&models.Cooldown{},
			&models.Purchase{},
		}
		for _, model := range dependents {
			if err := tx.Where("member_id = ?", memberID).Delete(model).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("rated_id = ? OR rater_id = ?", memberID, memberID).
			Delete(&models.QualityRating{}).Error; err != nil {
			return err
		}

		result := tx.Where("member_id = ?", memberID).Delete(&models.Member{})
		if result.Error != nil {
			return result.Error
		}
		existed = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, wrap("delete member "+memberID, err)
	}
	return existed, nil
}

// ContributorRow is a member's all-time feedback total.
type ContributorRow struct {
	MemberID             string
	TotalFeedbackAllTime int64
}

// TopContributors returns members with any feedback, highest all-time total first.
func (r *MemberRepository) TopContributors(ctx context.Context, limit int) ([]ContributorRow, error) {
	var rows []ContributorRow
	query := r.db.WithContext(ctx).Model(&models.Member{}).
		Select("member_id, total_feedback_all_time").
		Where("total_feedback_all_time > 0").
		Order("total_feedback_all_time DESC, member_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, wrap("list top contributors", err)
	}
	return rows, nil
}

// CountAhead returns how many contributors rank strictly above the given total.
func (r *MemberRepository) CountAhead(ctx context.Context, total int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("total_feedback_all_time > ?", total).
		Count(&count).Error
	if err != nil {
		return 0, wrap("count contributors ahead", err)
	}
	return count, nil
}

// QualityRow is a member's rating aggregate for the quality leaderboard.
type QualityRow struct {
	MemberID             string
	TotalFeedbackAllTime int64
	RatingAverage        float64
	RatingCount          int64
}

// QualityLeaderboard returns rated contributors with at least minRatings ratings, best average first.
func (r *MemberRepository) QualityLeaderboard(ctx context.Context, minRatings, limit int) ([]QualityRow, error) {
	var rows []QualityRow
	query := r.db.WithContext(ctx).Model(&models.Member{}).
		Select("member_id, total_feedback_all_time, rating_average, rating_count").
		Where("total_feedback_all_time > 0 AND rating_count >= ?", minRatings).
		Order("rating_average DESC, rating_count DESC, member_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, wrap("list quality leaderboard", err)
	}
	return rows, nil
}

// Totals are ledger-wide sums over the member table.
type Totals struct {
	Users    int64
	Feedback int64
	Credits  int64
	Leases   int64
}

// Totals sums the member counters.
func (r *MemberRepository) Totals(ctx context.Context) (*Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Select("COUNT(*) AS users, " +
			"COALESCE(SUM(total_feedback_all_time), 0) AS feedback, " +
			"COALESCE(SUM(current_credits), 0) AS credits, " +
			"COALESCE(SUM(chapter_leases), 0) AS leases").
		Scan(&totals).Error
	if err != nil {
		return nil, wrap("sum member totals", err)
	}
	return &totals, nil
}
