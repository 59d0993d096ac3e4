// Package leaderboard provides read-only ranking and statistics projections over the ledger.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aimd54/feedback-ledger/internal/cache"
	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/period"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

const cachePrefix = "ledger:leaderboard:"

// MemberRepository interface for member projections.
type MemberRepository interface {
	GetByID(ctx context.Context, memberID string) (*models.Member, error)
	TopContributors(ctx context.Context, limit int) ([]repository.ContributorRow, error)
	CountAhead(ctx context.Context, total int64) (int64, error)
	Totals(ctx context.Context) (*repository.Totals, error)
}

// ActivityRepository interface for monthly activity projections.
type ActivityRepository interface {
	Get(ctx context.Context, memberID, monthKey string) (*models.MonthlyActivity, error)
	CountActive(ctx context.Context, monthKey string) (int64, error)
}

// PardonRepository interface for pardon lookups.
type PardonRepository interface {
	Exists(ctx context.Context, memberID, monthKey string) (bool, error)
}

// PurchaseRepository interface for purchase lookups.
type PurchaseRepository interface {
	ListForMember(ctx context.Context, memberID string) ([]models.Purchase, error)
}

// Entry is a row of the all-time contributor leaderboard.
type Entry struct {
	Rank                 int    `json:"rank"`
	MemberID             string `json:"member_id"`
	TotalFeedbackAllTime int64  `json:"total_feedback_all_time"`
}

// Service builds leaderboards and statistics. It reads from every store and writes to none.
type Service struct {
	memberRepo   MemberRepository
	activityRepo ActivityRepository
	pardonRepo   PardonRepository
	purchaseRepo PurchaseRepository
	cache        cache.Cache
	cacheTTL     time.Duration
	clock        clockwork.Clock
	log          *logger.Logger

	mu         sync.Mutex
	cachedKeys map[string]struct{}
}

// NewService creates a new leaderboard service with concrete repository types.
// A nil cache or a zero TTL disables caching.
func NewService(
	memberRepo *repository.MemberRepository,
	activityRepo *repository.ActivityRepository,
	pardonRepo *repository.PardonRepository,
	purchaseRepo *repository.PurchaseRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(memberRepo, activityRepo, pardonRepo, purchaseRepo, c, cacheTTL, clockwork.NewRealClock(), log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	memberRepo MemberRepository,
	activityRepo ActivityRepository,
	pardonRepo PardonRepository,
	purchaseRepo PurchaseRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	clock clockwork.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		memberRepo:   memberRepo,
		activityRepo: activityRepo,
		pardonRepo:   pardonRepo,
		purchaseRepo: purchaseRepo,
		cache:        c,
		cacheTTL:     cacheTTL,
		clock:        clock,
		log:          log,
		cachedKeys:   make(map[string]struct{}),
	}
}

// CurrentMonthKey returns the reporting month key for now, with the 24-hour grace shift.
func (s *Service) CurrentMonthKey() string {
	return period.MonthKey(s.clock.Now())
}

// TopContributors returns members with any feedback, highest all-time total
// first, at most limit entries (all when limit is 0). Storage failures yield
// an empty board.
func (s *Service) TopContributors(ctx context.Context, limit int) []Entry {
	key := fmt.Sprintf("%stop:%d", cachePrefix, limit)

	var cached []Entry
	if s.getCached(ctx, "top", key, &cached) {
		return cached
	}

	rows, err := s.memberRepo.TopContributors(ctx, limit)
	if err != nil {
		prommetrics.RecordStorageError("top_contributors")
		s.log.Error().Err(err).Int("limit", limit).Msg("Failed to build contributor leaderboard")
		return []Entry{}
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{
			Rank:                 i + 1,
			MemberID:             row.MemberID,
			TotalFeedbackAllTime: row.TotalFeedbackAllTime,
		})
	}

	s.putCached(ctx, key, entries)
	return entries
}

// MemberRank returns the member's position on the contributor leaderboard.
// Ties share a rank. Returns false for members without feedback or when storage fails.
func (s *Service) MemberRank(ctx context.Context, memberID string) (int, bool) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			prommetrics.RecordStorageError("member_rank")
			s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to load member for rank")
		}
		return 0, false
	}
	if member.TotalFeedbackAllTime <= 0 {
		return 0, false
	}

	ahead, err := s.memberRepo.CountAhead(ctx, member.TotalFeedbackAllTime)
	if err != nil {
		prommetrics.RecordStorageError("member_rank")
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to rank member")
		return 0, false
	}
	return int(ahead) + 1, true
}

// getCached loads key into dst. Cache errors count as misses.
func (s *Service) getCached(ctx context.Context, board, key string, dst interface{}) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache read failed")
	}
	if err != nil || raw == "" {
		prommetrics.RecordCacheLookup(board, false)
		return false
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed cache entry")
		prommetrics.RecordCacheLookup(board, false)
		return false
	}

	prommetrics.RecordCacheLookup(board, true)
	return true
}

// putCached stores value under key, best effort.
func (s *Service) putCached(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, string(encoded), s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache write failed")
		return
	}

	s.mu.Lock()
	s.cachedKeys[key] = struct{}{}
	s.mu.Unlock()
}

// Invalidate drops every board and stats entry this service cached, so the
// next read sees the current ledger. Callers invoke it after ledger writes.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cachedKeys) == 0 {
		return
	}

	keys := make([]string, 0, len(s.cachedKeys))
	for key := range s.cachedKeys {
		keys = append(keys, key)
	}

	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Int("keys", len(keys)).Msg("Leaderboard cache invalidation failed")
		return
	}
	s.cachedKeys = make(map[string]struct{})
}
