// Package members provides the member record store of the ledger.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// Counter columns adjusted by RecordFeedback and AdjustCredits.
const (
	columnTotalFeedback = "total_feedback_all_time"
	columnCredits       = "current_credits"
)

// MemberRepository interface for member operations.
type MemberRepository interface {
	GetByID(ctx context.Context, memberID string) (*models.Member, error)
	Exists(ctx context.Context, memberID string) (bool, error)
	Upsert(ctx context.Context, memberID string, update models.MemberUpdate) error
	Increment(ctx context.Context, memberID string, deltas map[string]int64, lastActive int64) error
	Delete(ctx context.Context, memberID string) (bool, error)
}

// Service owns the canonical per-member accounting rows.
type Service struct {
	repo  MemberRepository
	clock clockwork.Clock
	log   *logger.Logger
}

// NewService creates a new member service with concrete repository types.
func NewService(repo *repository.MemberRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, clockwork.NewRealClock(), log)
}

// NewServiceWithInterfaces creates a new member service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo MemberRepository, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		clock: clock,
		log:   log,
	}
}

// GetOrDefault returns the stored member, or the zero-valued default when the
// member is unknown or storage fails. It never returns an error.
func (s *Service) GetOrDefault(ctx context.Context, memberID string) *models.Member {
	member, err := s.repo.GetByID(ctx, memberID)
	if err == nil {
		return member
	}
	if !errors.Is(err, repository.ErrNotFound) {
		prommetrics.RecordStorageError("get_member")
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to load member, using defaults")
	}
	return models.NewMember(memberID)
}

// Exists reports whether a member record exists. Storage errors report false.
func (s *Service) Exists(ctx context.Context, memberID string) bool {
	exists, err := s.repo.Exists(ctx, memberID)
	if err != nil {
		prommetrics.RecordStorageError("member_exists")
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to check member")
		return false
	}
	return exists
}

// ApplyUpdate writes the supplied fields, creating the member when absent.
// The member is guaranteed to exist once it returns nil.
func (s *Service) ApplyUpdate(ctx context.Context, memberID string, update models.MemberUpdate) error {
	if err := s.repo.Upsert(ctx, memberID, update); err != nil {
		prommetrics.RecordStorageError("apply_member_update")
		return fmt.Errorf("failed to apply update for member %s: %w", memberID, err)
	}

	s.log.Debug().
		Str("member_id", memberID).
		Strs("fields", update.Columns()).
		Msg("Member updated")
	return nil
}

// RecordFeedback credits one feedback contribution: it bumps the all-time
// total by one, adds credits and stamps last activity, atomically.
func (s *Service) RecordFeedback(ctx context.Context, memberID string, credits int64) error {
	deltas := map[string]int64{
		columnTotalFeedback: 1,
		columnCredits:       credits,
	}
	if err := s.repo.Increment(ctx, memberID, deltas, s.clock.Now().UnixMilli()); err != nil {
		prommetrics.RecordStorageError("record_feedback")
		return fmt.Errorf("failed to record feedback for member %s: %w", memberID, err)
	}

	prommetrics.RecordFeedback()
	s.log.Info().
		Str("member_id", memberID).
		Int64("credits", credits).
		Msg("Feedback recorded")
	return nil
}

// AdjustCredits adds delta to the credit balance. Negative balances are allowed.
func (s *Service) AdjustCredits(ctx context.Context, memberID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	if err := s.repo.Increment(ctx, memberID, map[string]int64{columnCredits: delta}, 0); err != nil {
		prommetrics.RecordStorageError("adjust_credits")
		return fmt.Errorf("failed to adjust credits for member %s: %w", memberID, err)
	}

	s.log.Info().
		Str("member_id", memberID).
		Int64("delta", delta).
		Msg("Credits adjusted")
	return nil
}

// Delete removes the member and every record owned by it.
// Returns whether the member existed.
func (s *Service) Delete(ctx context.Context, memberID string) (bool, error) {
	existed, err := s.repo.Delete(ctx, memberID)
	if err != nil {
		prommetrics.RecordStorageError("delete_member")
		return false, fmt.Errorf("failed to delete member %s: %w", memberID, err)
	}

	if existed {
		prommetrics.RecordMemberDeleted()
	}
	s.log.Info().
		Str("member_id", memberID).
		Bool("existed", existed).
		Msg("Member deleted")
	return existed, nil
}
