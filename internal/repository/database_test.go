package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// foreignKey is one row of PRAGMA foreign_key_list.
type foreignKey struct {
	Table    string `gorm:"column:table"`
	From     string `gorm:"column:from"`
	To       string `gorm:"column:to"`
	OnDelete string `gorm:"column:on_delete"`
}

func foreignKeys(t *testing.T, db *DB, table string) []foreignKey {
	t.Helper()

	var keys []foreignKey
	if err := db.Raw("PRAGMA foreign_key_list(" + table + ")").Scan(&keys).Error; err != nil {
		t.Fatalf("Failed to list foreign keys of %s: %v", table, err)
	}
	return keys
}

func TestAutoMigrate_DependentTablesReferenceMembers(t *testing.T) {
	db := setupLedgerTestDB(t)

	if keys := foreignKeys(t, db, "members"); len(keys) != 0 {
		t.Fatalf("Expected members to have no foreign keys, got %+v", keys)
	}

	tests := []struct {
		table   string
		columns []string
	}{
		{table: "monthly_activity", columns: []string{"member_id"}},
		{table: "pardons", columns: []string{"member_id"}},
		{table: "cooldowns", columns: []string{"member_id"}},
		{table: "purchases", columns: []string{"member_id"}},
		{table: "quality_ratings", columns: []string{"rated_id", "rater_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			keys := foreignKeys(t, db, tt.table)
			if len(keys) != len(tt.columns) {
				t.Fatalf("Expected %d foreign keys, got %+v", len(tt.columns), keys)
			}

			byColumn := make(map[string]foreignKey, len(keys))
			for _, key := range keys {
				byColumn[key.From] = key
			}
			for _, column := range tt.columns {
				key, ok := byColumn[column]
				if !ok {
					t.Fatalf("Expected a foreign key on %s, got %+v", column, keys)
				}
				if key.Table != "members" || key.To != "member_id" {
					t.Errorf("Expected %s to reference members(member_id), got %s(%s)", column, key.Table, key.To)
				}
				if key.OnDelete != "CASCADE" {
					t.Errorf("Expected ON DELETE CASCADE on %s, got %q", column, key.OnDelete)
				}
			}
		})
	}
}

func TestForeignKeys_DeletingMemberRowCascades(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()

	if err := NewActivityRepository(db).SetCount(ctx, "m", "2024-0", models.FeedbackKindComment, 4); err != nil {
		t.Fatalf("SetCount() failed: %v", err)
	}
	if err := NewPardonRepository(db).Upsert(ctx, "m", "2024-0", ""); err != nil {
		t.Fatalf("Upsert pardon failed: %v", err)
	}
	if err := NewCooldownRepository(db).Touch(ctx, "m", "daily", 1000); err != nil {
		t.Fatalf("Touch() failed: %v", err)
	}
	if err := NewPurchaseRepository(db).Upsert(ctx, "m", "quill", 1000); err != nil {
		t.Fatalf("Upsert purchase failed: %v", err)
	}
	if _, err := NewRatingRepository(db).Submit(ctx, &models.QualityRating{RatedID: "m", RaterID: "r", FeedbackMessageID: "1", Rating: 2}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	// Bypass the repository so only the schema's ON DELETE CASCADE is at work.
	if err := db.Exec("DELETE FROM members WHERE member_id = ?", "m").Error; err != nil {
		t.Fatalf("Failed to delete member row: %v", err)
	}

	for _, table := range []string{"monthly_activity", "pardons", "cooldowns", "purchases"} {
		var count int64
		if err := db.Table(table).Where("member_id = ?", "m").Count(&count).Error; err != nil {
			t.Fatalf("Failed to count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("Expected %s rows removed by cascade, got %d", table, count)
		}
	}

	var ratings int64
	if err := db.Model(&models.QualityRating{}).Where("rated_id = ?", "m").Count(&ratings).Error; err != nil {
		t.Fatalf("Failed to count ratings: %v", err)
	}
	if ratings != 0 {
		t.Errorf("Expected ratings removed by cascade, got %d", ratings)
	}
}

func TestForeignKeys_RejectOrphans(t *testing.T) {
	db := setupLedgerTestDB(t)

	err := db.Create(&models.Purchase{MemberID: "nobody", ItemID: "quill", PurchasedAt: 1}).Error
	if err == nil {
		t.Fatal("Expected inserting a purchase for an unknown member to fail")
	}
}

func TestImplicitMembers_GetJoinDate(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	db, err := OpenSQLite(":memory:", &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return now },
	}, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	ctx := context.Background()
	members := NewMemberRepository(db)

	if err := NewCooldownRepository(db).Touch(ctx, "via-dependent", "daily", 1); err != nil {
		t.Fatalf("Touch() failed: %v", err)
	}
	if err := members.Increment(ctx, "via-increment", map[string]int64{"current_credits": 5}, 0); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}
	if err := members.Upsert(ctx, "via-upsert", models.MemberUpdate{CurrentCredits: models.Int64(1)}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	for _, id := range []string{"via-dependent", "via-increment", "via-upsert"} {
		member, err := members.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s) failed: %v", id, err)
		}
		if member.JoinDate != now.UnixMilli() {
			t.Errorf("Expected %s join date %d, got %d", id, now.UnixMilli(), member.JoinDate)
		}
	}

	// Later writes never move the join date.
	now = now.Add(48 * time.Hour)
	if err := members.Increment(ctx, "via-increment", map[string]int64{"current_credits": 1}, 0); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}
	if err := members.Upsert(ctx, "via-upsert", models.MemberUpdate{CurrentCredits: models.Int64(2)}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	for _, id := range []string{"via-increment", "via-upsert"} {
		member, _ := members.GetByID(ctx, id)
		if member.JoinDate != now.Add(-48*time.Hour).UnixMilli() {
			t.Errorf("Expected %s join date unchanged, got %d", id, member.JoinDate)
		}
	}
}
