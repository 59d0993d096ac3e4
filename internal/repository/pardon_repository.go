package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/feedback-ledger/internal/models"
)

// PardonRepository handles monthly quota exemptions.
type PardonRepository struct {
	db *DB
}

// NewPardonRepository creates a new pardon repository.
func NewPardonRepository(db *DB) *PardonRepository {
	return &PardonRepository{db: db}
}

// Get retrieves the pardon of a member for a month. Returns ErrNotFound when absent.
func (r *PardonRepository) Get(ctx context.Context, memberID, monthKey string) (*models.Pardon, error) {
	var pardon models.Pardon
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND month_key = ?", memberID, monthKey).
		First(&pardon).Error
	if err != nil {
		return nil, wrap(fmt.Sprintf("get pardon %s/%s", memberID, monthKey), err)
	}
	return &pardon, nil
}

// Exists reports whether the member is pardoned for the month.
func (r *PardonRepository) Exists(ctx context.Context, memberID, monthKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Pardon{}).
		Where("member_id = ? AND month_key = ?", memberID, monthKey).
		Count(&count).Error
	if err != nil {
		return false, wrap(fmt.Sprintf("check pardon %s/%s", memberID, monthKey), err)
	}
	return count > 0, nil
}

// Upsert grants a pardon, overwriting the reason of an existing one.
func (r *PardonRepository) Upsert(ctx context.Context, memberID, monthKey, reason string) error {
	pardon := &models.Pardon{MemberID: memberID, MonthKey: monthKey, Reason: reason}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, memberID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "month_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason"}),
		}).Create(pardon).Error
	})
	if err != nil {
		return wrap(fmt.Sprintf("grant pardon %s/%s", memberID, monthKey), err)
	}
	return nil
}

// Delete revokes a pardon. Returns true iff a row was removed.
func (r *PardonRepository) Delete(ctx context.Context, memberID, monthKey string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("member_id = ? AND month_key = ?", memberID, monthKey).
		Delete(&models.Pardon{})
	if result.Error != nil {
		return false, wrap(fmt.Sprintf("revoke pardon %s/%s", memberID, monthKey), result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListForMonth returns every pardon granted for the month, oldest first.
func (r *PardonRepository) ListForMonth(ctx context.Context, monthKey string) ([]models.Pardon, error) {
	var pardons []models.Pardon
	err := r.db.WithContext(ctx).
		Where("month_key = ?", monthKey).
		Order("created_at ASC, member_id ASC").
		Find(&pardons).Error
	if err != nil {
		return nil, wrap("list pardons "+monthKey, err)
	}
	return pardons, nil
}
