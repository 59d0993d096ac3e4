package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// setupLedgerTestDB creates an in-memory SQLite ledger for testing.
func setupLedgerTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenSQLite(":memory:", nil, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return db
}

func TestMemberRepository_GetByID_NotFound(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemberRepository_Upsert_InsertsWithZeroDefaults(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, "alice", models.MemberUpdate{CurrentCredits: models.Int64(50)}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	member, err := repo.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}

	if member.CurrentCredits != 50 {
		t.Errorf("Expected 50 credits, got %d", member.CurrentCredits)
	}
	if member.TotalFeedbackAllTime != 0 || member.ChapterLeases != 0 || member.BookshelfPosts != 0 {
		t.Errorf("Expected omitted counters to be zero, got %+v", member)
	}
	if member.QualityRatings.Average != models.DefaultRatingAverage {
		t.Errorf("Expected default rating average, got %v", member.QualityRatings.Average)
	}
	if member.CreatedAt == 0 {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestMemberRepository_Upsert_IsIdempotent(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	update := models.MemberUpdate{CurrentCredits: models.Int64(50)}
	for i := 0; i < 2; i++ {
		if err := repo.Upsert(ctx, "alice", update); err != nil {
			t.Fatalf("Upsert() #%d failed: %v", i, err)
		}
	}

	member, err := repo.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if member.CurrentCredits != 50 {
		t.Errorf("Expected 50 credits after repeated upsert, got %d", member.CurrentCredits)
	}
}

func TestMemberRepository_Upsert_ZeroOverwritesBalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, "alice", models.MemberUpdate{CurrentCredits: models.Int64(50)}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := repo.Upsert(ctx, "alice", models.MemberUpdate{
		CurrentCredits: models.Int64(0),
		LastActive:     models.Int64(0),
	}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	member, err := repo.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if member.CurrentCredits != 0 {
		t.Errorf("Expected credits reset to 0, got %d", member.CurrentCredits)
	}
}

func TestMemberRepository_Upsert_OnlyTouchesSuppliedFields(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	first := models.MemberUpdate{
		TotalFeedbackAllTime: models.Int64(7),
		CurrentCredits:       models.Int64(20),
		JoinDate:             models.Int64(1000),
	}
	if err := repo.Upsert(ctx, "bob", first); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	before, _ := repo.GetByID(ctx, "bob")

	if err := repo.Upsert(ctx, "bob", models.MemberUpdate{CurrentCredits: models.Int64(0)}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	after, err := repo.GetByID(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if after.CurrentCredits != 0 {
		t.Errorf("Expected credits overwritten to 0, got %d", after.CurrentCredits)
	}
	if after.TotalFeedbackAllTime != 7 || after.JoinDate != 1000 {
		t.Errorf("Expected untouched fields preserved, got %+v", after)
	}
	if after.CreatedAt != before.CreatedAt {
		t.Errorf("Expected CreatedAt unchanged, got %d want %d", after.CreatedAt, before.CreatedAt)
	}
}

func TestMemberRepository_Increment(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	deltas := map[string]int64{"total_feedback_all_time": 1, "current_credits": 5}
	if err := repo.Increment(ctx, "carol", deltas, 123); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}
	if err := repo.Increment(ctx, "carol", deltas, 456); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}
	if err := repo.Increment(ctx, "carol", map[string]int64{"current_credits": -15}, 0); err != nil {
		t.Fatalf("Increment() failed: %v", err)
	}

	member, err := repo.GetByID(ctx, "carol")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if member.TotalFeedbackAllTime != 2 {
		t.Errorf("Expected 2 feedback, got %d", member.TotalFeedbackAllTime)
	}
	if member.CurrentCredits != -5 {
		t.Errorf("Expected credits to go negative (-5), got %d", member.CurrentCredits)
	}
	if member.LastActive != 456 {
		t.Errorf("Expected last_active 456, got %d", member.LastActive)
	}

	err = repo.Increment(ctx, "carol", map[string]int64{"rating_sum": 1}, 0)
	if !errors.Is(err, ErrConstraintViolation) {
		t.Errorf("Expected ErrConstraintViolation for unknown counter, got %v", err)
	}
}

func TestMemberRepository_TopContributorsAndTotals(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	seed := map[string]int64{"alice": 10, "bob": 30, "carol": 20, "dave": 0}
	for id, total := range seed {
		update := models.MemberUpdate{
			TotalFeedbackAllTime: models.Int64(total),
			CurrentCredits:       models.Int64(total * 2),
			ChapterLeases:        models.Int64(1),
		}
		if err := repo.Upsert(ctx, id, update); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", id, err)
		}
	}

	top, err := repo.TopContributors(ctx, 2)
	if err != nil {
		t.Fatalf("TopContributors() failed: %v", err)
	}
	if len(top) != 2 || top[0].MemberID != "bob" || top[1].MemberID != "carol" {
		t.Errorf("Unexpected top contributors: %+v", top)
	}

	all, err := repo.TopContributors(ctx, 0)
	if err != nil {
		t.Fatalf("TopContributors() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected members without feedback excluded, got %d rows", len(all))
	}

	ahead, err := repo.CountAhead(ctx, 20)
	if err != nil {
		t.Fatalf("CountAhead() failed: %v", err)
	}
	if ahead != 1 {
		t.Errorf("Expected 1 contributor ahead of 20, got %d", ahead)
	}

	totals, err := repo.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals() failed: %v", err)
	}
	if totals.Users != 4 || totals.Feedback != 60 || totals.Credits != 120 || totals.Leases != 4 {
		t.Errorf("Unexpected totals: %+v", totals)
	}
}

func TestMemberRepository_Totals_EmptyLedger(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewMemberRepository(db)

	totals, err := repo.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals() failed: %v", err)
	}
	if *totals != (Totals{}) {
		t.Errorf("Expected zero totals, got %+v", totals)
	}
}

func TestMemberRepository_Delete_Cascades(t *testing.T) {
	db := setupLedgerTestDB(t)
	ctx := context.Background()

	members := NewMemberRepository(db)
	activity := NewActivityRepository(db)
	pardons := NewPardonRepository(db)
	ratings := NewRatingRepository(db)
	cooldowns := NewCooldownRepository(db)
	purchases := NewPurchaseRepository(db)

	if err := members.Upsert(ctx, "m", models.MemberUpdate{TotalFeedbackAllTime: models.Int64(3)}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := activity.SetCount(ctx, "m", "2024-0", models.FeedbackKindDocument, 2); err != nil {
		t.Fatalf("SetCount() failed: %v", err)
	}
	if err := pardons.Upsert(ctx, "m", "2024-0", "vacation"); err != nil {
		t.Fatalf("Upsert pardon failed: %v", err)
	}
	if _, err := ratings.Submit(ctx, &models.QualityRating{RatedID: "m", RaterID: "r", FeedbackMessageID: "1", Rating: 3}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err := ratings.Submit(ctx, &models.QualityRating{RatedID: "other", RaterID: "m", FeedbackMessageID: "2", Rating: 4}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if err := cooldowns.Touch(ctx, "m", "daily", 1000); err != nil {
		t.Fatalf("Touch() failed: %v", err)
	}
	if err := purchases.Upsert(ctx, "m", "badge", 1000); err != nil {
		t.Fatalf("Upsert purchase failed: %v", err)
	}

	existed, err := members.Delete(ctx, "m")
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if !existed {
		t.Error("Expected Delete() to report an existing member")
	}

	if _, err := members.GetByID(ctx, "m"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected member gone, got %v", err)
	}
	if _, err := activity.Get(ctx, "m", "2024-0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected activity gone, got %v", err)
	}
	if ok, _ := pardons.Exists(ctx, "m", "2024-0"); ok {
		t.Error("Expected pardon gone")
	}
	if list, _ := ratings.ListForMember(ctx, "m"); len(list) != 0 {
		t.Errorf("Expected received ratings gone, got %d", len(list))
	}
	if n, _ := ratings.CountByRater(ctx, "m"); n != 0 {
		t.Errorf("Expected given ratings gone, got %d", n)
	}
	if last, _ := cooldowns.LastUsed(ctx, "m", "daily"); last != 0 {
		t.Errorf("Expected cooldown gone, got %d", last)
	}
	if list, _ := purchases.ListForMember(ctx, "m"); len(list) != 0 {
		t.Errorf("Expected purchases gone, got %d", len(list))
	}

	// The other member keeps its own aggregate row.
	other, err := members.GetByID(ctx, "other")
	if err != nil {
		t.Fatalf("Expected rated member to survive: %v", err)
	}
	if other.QualityRatings.Count != 1 {
		t.Errorf("Expected other member aggregate untouched, got %+v", other.QualityRatings)
	}

	existed, err = members.Delete(ctx, "m")
	if err != nil {
		t.Fatalf("Second Delete() failed: %v", err)
	}
	if existed {
		t.Error("Expected second Delete() to report nothing removed")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"unique", errors.New("UNIQUE constraint failed: pardons.member_id"), ErrConstraintViolation},
		{"closed", errors.New("sql: database is closed"), ErrStorageUnavailable},
		{"canceled", context.Canceled, ErrStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrap("test", tt.err); !errors.Is(got, tt.want) {
				t.Errorf("wrap(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
