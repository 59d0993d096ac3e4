// Package purchases records the items members have redeemed.
package purchases

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	prommetrics "github.com/aimd54/feedback-ledger/internal/metrics"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// PurchaseRepository interface for purchase operations.
type PurchaseRepository interface {
	Upsert(ctx context.Context, memberID, itemID string, purchasedAt int64) error
	ListForMember(ctx context.Context, memberID string) ([]models.Purchase, error)
	Exists(ctx context.Context, memberID, itemID string) (bool, error)
}

// Service handles the purchase ledger. Credits are charged separately by the caller.
type Service struct {
	repo  PurchaseRepository
	clock clockwork.Clock
	log   *logger.Logger
}

// NewService creates a new purchase service with concrete repository types.
func NewService(repo *repository.PurchaseRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, clockwork.NewRealClock(), log)
}

// NewServiceWithInterfaces creates a new purchase service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo PurchaseRepository, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		clock: clock,
		log:   log,
	}
}

// Add records that the member owns item. Buying it again refreshes the timestamp.
func (s *Service) Add(ctx context.Context, memberID, itemID string) error {
	if err := s.repo.Upsert(ctx, memberID, itemID, s.clock.Now().UnixMilli()); err != nil {
		prommetrics.RecordStorageError("add_purchase")
		return fmt.Errorf("failed to add purchase: %w", err)
	}

	prommetrics.RecordPurchase()
	s.log.Info().
		Str("member_id", memberID).
		Str("item_id", itemID).
		Msg("Purchase recorded")
	return nil
}

// ListFor returns the items the member owns, sorted. Storage failures yield an empty list.
func (s *Service) ListFor(ctx context.Context, memberID string) []string {
	purchases, err := s.repo.ListForMember(ctx, memberID)
	if err != nil {
		prommetrics.RecordStorageError("list_purchases")
		s.log.Warn().Err(err).Str("member_id", memberID).Msg("Failed to list purchases")
		return []string{}
	}

	items := make([]string, 0, len(purchases))
	for _, p := range purchases {
		items = append(items, p.ItemID)
	}
	return items
}

// Has reports whether the member owns item. Storage failures report false.
func (s *Service) Has(ctx context.Context, memberID, itemID string) bool {
	owned, err := s.repo.Exists(ctx, memberID, itemID)
	if err != nil {
		prommetrics.RecordStorageError("has_purchase")
		s.log.Warn().Err(err).
			Str("member_id", memberID).
			Str("item_id", itemID).
			Msg("Failed to check purchase")
		return false
	}
	return owned
}
