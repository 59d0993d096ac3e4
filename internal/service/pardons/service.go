// Package pardons records monthly quota exemptions.
package pardons

import (
	"context"
	"errors"
	"fmt"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// PardonRepository interface for pardon operations.
type PardonRepository interface {
	Get(ctx context.Context, memberID, monthKey string) (*models.Pardon, error)
	Exists(ctx context.Context, memberID, monthKey string) (bool, error)
	Upsert(ctx context.Context, memberID, monthKey, reason string) error
	Delete(ctx context.Context, memberID, monthKey string) (bool, error)
	ListForMonth(ctx context.Context, monthKey string) ([]models.Pardon, error)
}

// Entry is a pardon listed for a month.
type Entry struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

// Service answers whether a member is exempt from the monthly quota.
// What happens to members who are not is up to the caller.
type Service struct {
	repo          PardonRepository
	defaultReason string
	log           *logger.Logger
}

// NewService creates a new pardon service with concrete repository types.
func NewService(repo *repository.PardonRepository, defaultReason string, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, defaultReason, log)
}

// NewServiceWithInterfaces creates a new pardon service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo PardonRepository, defaultReason string, log *logger.Logger) *Service {
	if defaultReason == "" {
		defaultReason = models.DefaultPardonReason
	}
	return &Service{
		repo:          repo,
		defaultReason: defaultReason,
		log:           log,
	}
}

// IsPardoned reports whether the member is exempt for the month.
// Storage failures report false.
func (s *Service) IsPardoned(ctx context.Context, memberID, monthKey string) bool {
	exists, err := s.repo.Exists(ctx, memberID, monthKey)
	if err != nil {
		prommetrics.RecordStorageError("is_pardoned")
		s.log.Warn().Err(err).
			Str("member_id", memberID).
			Str("month_key", monthKey).
			Msg("Failed to check pardon")
		return false
	}
	return exists
}

// Grant pardons the member for the month. Granting again overwrites the reason.
// An empty reason records the configured default.
func (s *Service) Grant(ctx context.Context, memberID, monthKey, reason string) error {
	if reason == "" {
		reason = s.defaultReason
	}

	if err := s.repo.Upsert(ctx, memberID, monthKey, reason); err != nil {
		prommetrics.RecordStorageError("grant_pardon")
		return fmt.Errorf("failed to grant pardon: %w", err)
	}

	prommetrics.RecordPardonChange("granted")
	s.log.Info().
		Str("member_id", memberID).
		Str("month_key", monthKey).
		Str("reason", reason).
		Msg("Pardon granted")
	return nil
}

// Revoke removes the member's pardon for the month.
// Returns true iff a pardon existed and was removed.
func (s *Service) Revoke(ctx context.Context, memberID, monthKey string) (bool, error) {
	removed, err := s.repo.Delete(ctx, memberID, monthKey)
	if err != nil {
		prommetrics.RecordStorageError("revoke_pardon")
		return false, fmt.Errorf("failed to revoke pardon: %w", err)
	}

	if removed {
		prommetrics.RecordPardonChange("revoked")
		s.log.Info().
			Str("member_id", memberID).
			Str("month_key", monthKey).
			Msg("Pardon revoked")
	}
	return removed, nil
}

// Reason returns the recorded reason, and false when the member is not pardoned.
func (s *Service) Reason(ctx context.Context, memberID, monthKey string) (string, bool) {
	pardon, err := s.repo.Get(ctx, memberID, monthKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			prommetrics.RecordStorageError("pardon_reason")
			s.log.Warn().Err(err).
				Str("member_id", memberID).
				Str("month_key", monthKey).
				Msg("Failed to load pardon")
		}
		return "", false
	}
	return pardon.Reason, true
}

// ListForMonth returns every pardon of the month. Storage failures yield an empty list.
func (s *Service) ListForMonth(ctx context.Context, monthKey string) []Entry {
	pardons, err := s.repo.ListForMonth(ctx, monthKey)
	if err != nil {
		prommetrics.RecordStorageError("list_pardons")
		s.log.Error().Err(err).Str("month_key", monthKey).Msg("Failed to list pardons")
		return []Entry{}
	}

	entries := make([]Entry, 0, len(pardons))
	for _, p := range pardons {
		entries = append(entries, Entry{MemberID: p.MemberID, Reason: p.Reason})
	}
	return entries
}
