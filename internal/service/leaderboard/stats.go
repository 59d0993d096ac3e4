package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
)

// ServerStats are ledger-wide totals.
type ServerStats struct {
	TotalUsers         int64   `json:"total_users"`
	TotalFeedback      int64   `json:"total_feedback"`
	TotalCredits       int64   `json:"total_credits"`
	TotalLeases        int64   `json:"total_leases"`
	AvgFeedbackPerUser float64 `json:"avg_feedback_per_user"`
	AvgCreditsPerUser  float64 `json:"avg_credits_per_user"`
	ActiveThisMonth    int64   `json:"active_this_month"`
	MonthKey           string  `json:"month_key"`
}

// MonthActivity is a member's activity in the current reporting month.
type MonthActivity struct {
	Docs          int64 `json:"docs"`
	Comments      int64 `json:"comments"`
	WeightedScore int64 `json:"weighted_score"`
	Pardoned      bool  `json:"pardoned"`
}

// MemberProfile is everything the ledger knows about one member.
type MemberProfile struct {
	Member    *models.Member `json:"member"`
	Rank      int            `json:"rank,omitempty"`
	MonthKey  string         `json:"month_key"`
	Month     MonthActivity  `json:"month"`
	Purchases []string       `json:"purchases"`
}

// ServerStats returns ledger-wide totals and how many members were active in
// the current month, from the cache when possible. Storage failures yield zero stats.
func (s *Service) ServerStats(ctx context.Context) ServerStats {
	monthKey := s.CurrentMonthKey()

	var cached ServerStats
	key := cachePrefix + "stats:" + monthKey
	if s.getCached(ctx, "stats", key, &cached) {
		return cached
	}

	stats, err := s.ComputeServerStats(ctx)
	if err != nil {
		prommetrics.RecordStorageError("server_stats")
		s.log.Error().Err(err).Str("month_key", monthKey).Msg("Failed to compute server stats")
		return ServerStats{MonthKey: monthKey}
	}

	s.putCached(ctx, key, stats)
	return stats
}

// ComputeServerStats reads ledger-wide totals straight from storage, bypassing the cache.
func (s *Service) ComputeServerStats(ctx context.Context) (ServerStats, error) {
	monthKey := s.CurrentMonthKey()
	stats := ServerStats{MonthKey: monthKey}

	totals, err := s.memberRepo.Totals(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to compute ledger totals: %w", err)
	}

	active, err := s.activityRepo.CountActive(ctx, monthKey)
	if err != nil {
		return stats, fmt.Errorf("failed to count active members in %s: %w", monthKey, err)
	}

	stats.TotalUsers = totals.Users
	stats.TotalFeedback = totals.Feedback
	stats.TotalCredits = totals.Credits
	stats.TotalLeases = totals.Leases
	stats.ActiveThisMonth = active
	if totals.Users > 0 {
		stats.AvgFeedbackPerUser = roundTwo(float64(totals.Feedback) / float64(totals.Users))
		stats.AvgCreditsPerUser = roundTwo(float64(totals.Credits) / float64(totals.Users))
	}
	return stats, nil
}

// MemberProfile gathers a member's record, rank, current-month activity,
// pardon status and purchases. Returns repository.ErrNotFound for unknown members.
func (s *Service) MemberProfile(ctx context.Context, memberID string) (*MemberProfile, error) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			prommetrics.RecordStorageError("member_profile")
		}
		return nil, fmt.Errorf("failed to load member %s: %w", memberID, err)
	}

	monthKey := s.CurrentMonthKey()
	profile := &MemberProfile{
		Member:    member,
		MonthKey:  monthKey,
		Purchases: []string{},
	}

	if rank, ok := s.MemberRank(ctx, memberID); ok {
		profile.Rank = rank
	}

	activity, err := s.activityRepo.Get(ctx, memberID, monthKey)
	switch {
	case err == nil:
		profile.Month.Docs = activity.DocFeedbackCount
		profile.Month.Comments = activity.CommentFeedbackCount
		profile.Month.WeightedScore = activity.WeightedScore()
	case !errors.Is(err, repository.ErrNotFound):
		s.log.Warn().Err(err).Str("member_id", memberID).Str("month_key", monthKey).Msg("Failed to load monthly activity")
	}

	pardoned, err := s.pardonRepo.Exists(ctx, memberID, monthKey)
	if err != nil {
		s.log.Warn().Err(err).Str("member_id", memberID).Str("month_key", monthKey).Msg("Failed to check pardon")
	}
	profile.Month.Pardoned = pardoned

	purchases, err := s.purchaseRepo.ListForMember(ctx, memberID)
	if err != nil {
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to list purchases")
	}
	for _, p := range purchases {
		profile.Purchases = append(profile.Purchases, p.ItemID)
	}

	return profile, nil
}

func roundTwo(x float64) float64 {
	return math.Round(x*100) / 100
}
