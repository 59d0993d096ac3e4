package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/feedback-ledger/internal/models"
)

// CooldownRepository handles per-action last-used timestamps.
type CooldownRepository struct {
	db *DB
}

// NewCooldownRepository creates a new cooldown repository.
func NewCooldownRepository(db *DB) *CooldownRepository {
	return &CooldownRepository{db: db}
}

// LastUsed returns the epoch-millisecond timestamp of the member's last use of
// the action, or 0 when it was never recorded.
func (r *CooldownRepository) LastUsed(ctx context.Context, memberID, actionKind string) (int64, error) {
	var cooldown models.Cooldown
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND action_kind = ?", memberID, actionKind).
		First(&cooldown).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap(fmt.Sprintf("get cooldown %s/%s", memberID, actionKind), err)
	}
	return cooldown.LastUsed, nil
}

// Touch stores usedAt as the last use of the action.
func (r *CooldownRepository) Touch(ctx context.Context, memberID, actionKind string, usedAt int64) error {
	cooldown := &models.Cooldown{MemberID: memberID, ActionKind: actionKind, LastUsed: usedAt}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, memberID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "action_kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_used"}),
		}).Create(cooldown).Error
	})
	if err != nil {
		return wrap(fmt.Sprintf("touch cooldown %s/%s", memberID, actionKind), err)
	}
	return nil
}

// DeleteOlderThan removes cooldowns last used before cutoff, optionally only
// for one action kind. Returns the number of rows removed.
func (r *CooldownRepository) DeleteOlderThan(ctx context.Context, cutoff int64, actionKind string) (int64, error) {
	query := r.db.WithContext(ctx).Where("last_used < ?", cutoff)
	if actionKind != "" {
		query = query.Where("action_kind = ?", actionKind)
	}

	result := query.Delete(&models.Cooldown{})
	if result.Error != nil {
		return 0, wrap("sweep cooldowns", result.Error)
	}
	return result.RowsAffected, nil
}
