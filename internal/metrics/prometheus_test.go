package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRating(t *testing.T) {
	// Reset the counter before test
	RatingsSubmittedTotal.Reset()

	RecordRating("accepted")
	RecordRating("accepted")
	RecordRating("duplicate")

	count := testutil.ToFloat64(RatingsSubmittedTotal.WithLabelValues("accepted"))
	if count != 2 {
		t.Errorf("Expected accepted count = 2, got %f", count)
	}

	count = testutil.ToFloat64(RatingsSubmittedTotal.WithLabelValues("duplicate"))
	if count != 1 {
		t.Errorf("Expected duplicate count = 1, got %f", count)
	}
}

func TestRecordFeedbackAndActivity(t *testing.T) {
	ActivityIncrementsTotal.Reset()
	before := testutil.ToFloat64(FeedbackRecordedTotal)

	RecordFeedback()
	RecordActivityIncrement("document")
	RecordActivityIncrement("document")
	RecordActivityIncrement("comment")

	if got := testutil.ToFloat64(FeedbackRecordedTotal) - before; got != 1 {
		t.Errorf("Expected 1 feedback recorded, got %f", got)
	}
	if got := testutil.ToFloat64(ActivityIncrementsTotal.WithLabelValues("document")); got != 2 {
		t.Errorf("Expected document increments = 2, got %f", got)
	}
}

func TestRecordPardonChange(t *testing.T) {
	PardonChangesTotal.Reset()

	RecordPardonChange("granted")
	RecordPardonChange("revoked")
	RecordPardonChange("granted")

	count := testutil.ToFloat64(PardonChangesTotal.WithLabelValues("granted"))
	if count != 2 {
		t.Errorf("Expected granted count = 2, got %f", count)
	}
}

func TestRecordCooldownsSwept(t *testing.T) {
	CooldownsSweptTotal.Reset()

	RecordCooldownsSwept("", 3)
	RecordCooldownsSwept("daily", 2)

	count := testutil.ToFloat64(CooldownsSweptTotal.WithLabelValues("all"))
	if count != 3 {
		t.Errorf("Expected all-kinds sweep count = 3, got %f", count)
	}

	count = testutil.ToFloat64(CooldownsSweptTotal.WithLabelValues("daily"))
	if count != 2 {
		t.Errorf("Expected daily sweep count = 2, got %f", count)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	LeaderboardCacheTotal.Reset()

	RecordCacheLookup("top", true)
	RecordCacheLookup("top", false)
	RecordCacheLookup("top", false)

	if got := testutil.ToFloat64(LeaderboardCacheTotal.WithLabelValues("top", "miss")); got != 2 {
		t.Errorf("Expected 2 misses, got %f", got)
	}
	if got := testutil.ToFloat64(LeaderboardCacheTotal.WithLabelValues("top", "hit")); got != 1 {
		t.Errorf("Expected 1 hit, got %f", got)
	}
}

func TestSetLedgerTotals(t *testing.T) {
	SetLedgerTotals(10, 200, 150, 4, 6)

	if got := testutil.ToFloat64(LedgerMembers); got != 10 {
		t.Errorf("Expected members = 10, got %f", got)
	}
	if got := testutil.ToFloat64(LedgerCredits); got != 150 {
		t.Errorf("Expected credits = 150, got %f", got)
	}
	if got := testutil.ToFloat64(ActiveMembersThisMonth); got != 6 {
		t.Errorf("Expected active members = 6, got %f", got)
	}
}

func TestSchedulerMetrics(t *testing.T) {
	SchedulerJobsRunTotal.Reset()

	RecordSchedulerJobRun("cooldown_sweep", "success")
	SetSchedulerLastRun("cooldown_sweep")
	ObserveSchedulerJobDuration("cooldown_sweep", 0.5)

	if got := testutil.ToFloat64(SchedulerJobsRunTotal.WithLabelValues("cooldown_sweep", "success")); got != 1 {
		t.Errorf("Expected 1 run, got %f", got)
	}
	if got := testutil.ToFloat64(SchedulerLastRunTimestamp.WithLabelValues("cooldown_sweep")); got <= 0 {
		t.Errorf("Expected last run timestamp set, got %f", got)
	}
}
