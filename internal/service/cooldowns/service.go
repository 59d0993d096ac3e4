// Package cooldowns stores last-use timestamps for throttled actions.
//
// The tracker stores timestamps only. Whether an action is still on cooldown
// is decided by the caller, which compares now minus LastUsed with its own window.
package cooldowns

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// CooldownRepository interface for cooldown operations.
type CooldownRepository interface {
	LastUsed(ctx context.Context, memberID, actionKind string) (int64, error)
	Touch(ctx context.Context, memberID, actionKind string, usedAt int64) error
	DeleteOlderThan(ctx context.Context, cutoff int64, actionKind string) (int64, error)
}

// Service handles per-member action cooldowns.
type Service struct {
	repo  CooldownRepository
	clock clockwork.Clock
	log   *logger.Logger
}

// NewService creates a new cooldown service with concrete repository types.
func NewService(repo *repository.CooldownRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, clockwork.NewRealClock(), log)
}

// NewServiceWithInterfaces creates a new cooldown service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo CooldownRepository, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		clock: clock,
		log:   log,
	}
}

// LastUsed returns the epoch-millisecond time the member last used the action,
// or 0 when never used or unreadable.
func (s *Service) LastUsed(ctx context.Context, memberID, actionKind string) int64 {
	lastUsed, err := s.repo.LastUsed(ctx, memberID, actionKind)
	if err != nil {
		prommetrics.RecordStorageError("cooldown_last_used")
		s.log.Warn().Err(err).
			Str("member_id", memberID).
			Str("action", actionKind).
			Msg("Failed to load cooldown")
		return 0
	}
	return lastUsed
}

// Touch marks the action as used now.
func (s *Service) Touch(ctx context.Context, memberID, actionKind string) error {
	if err := s.repo.Touch(ctx, memberID, actionKind, s.clock.Now().UnixMilli()); err != nil {
		prommetrics.RecordStorageError("cooldown_touch")
		return fmt.Errorf("failed to touch cooldown: %w", err)
	}
	return nil
}

// Remaining returns how long the action stays throttled for the given window,
// zero when it is available.
func (s *Service) Remaining(ctx context.Context, memberID, actionKind string, window time.Duration) time.Duration {
	lastUsed := s.LastUsed(ctx, memberID, actionKind)
	if lastUsed == 0 {
		return 0
	}

	elapsed := time.Duration(s.clock.Now().UnixMilli()-lastUsed) * time.Millisecond
	if elapsed >= window {
		return 0
	}
	return window - elapsed
}

// Sweep deletes cooldowns last used more than maxAge ago, for one action kind
// or all of them when actionKind is empty. The cutoff is fixed before the
// delete runs, so rows touched during the sweep survive. Failures are logged
// and reported as zero rows removed.
func (s *Service) Sweep(ctx context.Context, maxAge time.Duration, actionKind string) int64 {
	cutoff := s.clock.Now().UnixMilli() - maxAge.Milliseconds()

	removed, err := s.repo.DeleteOlderThan(ctx, cutoff, actionKind)
	if err != nil {
		prommetrics.RecordStorageError("cooldown_sweep")
		s.log.Error().Err(err).
			Str("action", actionKind).
			Dur("max_age", maxAge).
			Msg("Cooldown sweep failed")
		return 0
	}

	prommetrics.RecordCooldownsSwept(actionKind, removed)
	s.log.Info().
		Str("action", actionKind).
		Dur("max_age", maxAge).
		Int64("removed", removed).
		Msg("Cooldown sweep completed")
	return removed
}
