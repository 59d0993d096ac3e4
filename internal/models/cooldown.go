package models

// Cooldown records when a member last performed a throttled action.
type Cooldown struct {
	MemberID   string `gorm:"primaryKey;size:64" json:"member_id"`
	ActionKind string `gorm:"primaryKey;size:64" json:"action_kind"`
	LastUsed   int64  `gorm:"not null;index" json:"last_used"` // epoch milliseconds
}

// TableName specifies the table name for Cooldown model.
func (Cooldown) TableName() string {
	return "cooldowns"
}

// Purchase records that a member redeemed an item.
type Purchase struct {
	MemberID    string `gorm:"primaryKey;size:64" json:"member_id"`
	ItemID      string `gorm:"primaryKey;size:128" json:"item_id"`
	PurchasedAt int64  `gorm:"not null" json:"purchased_at"` // epoch milliseconds
}

// TableName specifies the table name for Purchase model.
func (Purchase) TableName() string {
	return "purchases"
}

// All returns every ledger model in migration order.
func All() []interface{} {
	return []interface{}{
		&Member{},
		&MonthlyActivity{},
		&Pardon{},
		&QualityRating{},
		&Cooldown{},
		&Purchase{},
	}
}
