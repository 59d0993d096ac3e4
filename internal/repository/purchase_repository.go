package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/feedback-ledger/internal/models"
)

// PurchaseRepository handles redeemed items.
type PurchaseRepository struct {
	db *DB
}

// NewPurchaseRepository creates a new purchase repository.
func NewPurchaseRepository(db *DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Upsert records a purchase. Buying the same item again only refreshes the timestamp.
func (r *PurchaseRepository) Upsert(ctx context.Context, memberID, itemID string, purchasedAt int64) error {
	purchase := &models.Purchase{MemberID: memberID, ItemID: itemID, PurchasedAt: purchasedAt}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, memberID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"purchased_at"}),
		}).Create(purchase).Error
	})
	if err != nil {
		return wrap(fmt.Sprintf("record purchase %s/%s", memberID, itemID), err)
	}
	return nil
}

// ListForMember returns the member's purchases ordered by item.
func (r *PurchaseRepository) ListForMember(ctx context.Context, memberID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("item_id ASC").
		Find(&purchases).Error
	if err != nil {
		return nil, wrap("list purchases for "+memberID, err)
	}
	return purchases, nil
}

// Exists reports whether the member owns the item.
func (r *PurchaseRepository) Exists(ctx context.Context, memberID, itemID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("member_id = ? AND item_id = ?", memberID, itemID).
		Count(&count).Error
	if err != nil {
		return false, wrap(fmt.Sprintf("check purchase %s/%s", memberID, itemID), err)
	}
	return count > 0, nil
}
