// Package dashboard provides the read-only REST API over the ledger.
// It exposes endpoints for leaderboards, ledger statistics, member profiles and pardons.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/internal/service/activity"
	"github.com/aimd54/feedback-ledger/internal/service/leaderboard"
	"github.com/aimd54/feedback-ledger/internal/service/pardons"
	"github.com/aimd54/feedback-ledger/internal/service/purchases"
	"github.com/aimd54/feedback-ledger/internal/service/ratings"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// LeaderboardService interface for all-time leaderboard and statistics operations.
type LeaderboardService interface {
	TopContributors(ctx context.Context, limit int) []leaderboard.Entry
	ServerStats(ctx context.Context) leaderboard.ServerStats
	MemberProfile(ctx context.Context, memberID string) (*leaderboard.MemberProfile, error)
	CurrentMonthKey() string
}

// ActivityService interface for monthly leaderboard operations.
type ActivityService interface {
	MonthlyLeaderboard(ctx context.Context, monthKey string, limit int) []activity.Entry
}

// RatingService interface for quality leaderboard operations.
type RatingService interface {
	QualityLeaderboard(ctx context.Context, limit int) []ratings.Entry
}

// PardonService interface for pardon listings.
type PardonService interface {
	ListForMonth(ctx context.Context, monthKey string) []pardons.Entry
}

// PurchaseService interface for purchase listings.
type PurchaseService interface {
	ListFor(ctx context.Context, memberID string) []string
}

// HealthChecker reports whether the ledger store is reachable.
type HealthChecker interface {
	Health() error
}

// Handler handles dashboard API requests.
type Handler struct {
	leaderboardService LeaderboardService
	activityService    ActivityService
	ratingService      RatingService
	pardonService      PardonService
	purchaseService    PurchaseService
	health             HealthChecker
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(
	leaderboardService *leaderboard.Service,
	activityService *activity.Service,
	ratingService *ratings.Service,
	pardonService *pardons.Service,
	purchaseService *purchases.Service,
	db *repository.DB,
	log *logger.Logger,
) *Handler {
	// A nil *DB stored in the interface would not compare equal to nil.
	var health HealthChecker
	if db != nil {
		health = db
	}
	return NewHandlerWithInterfaces(leaderboardService, activityService, ratingService, pardonService, purchaseService, health, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	leaderboardService LeaderboardService,
	activityService ActivityService,
	ratingService RatingService,
	pardonService PardonService,
	purchaseService PurchaseService,
	health HealthChecker,
	log *logger.Logger,
) *Handler {
	return &Handler{
		leaderboardService: leaderboardService,
		activityService:    activityService,
		ratingService:      ratingService,
		pardonService:      pardonService,
		purchaseService:    purchaseService,
		health:             health,
		log:                log,
	}
}

// RegisterRoutes mounts the API under /api/v1 and the health probe at /health.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	api.GET("/leaderboard", h.GetTopContributors)
	api.GET("/leaderboard/monthly", h.GetMonthlyLeaderboard)
	api.GET("/leaderboard/quality", h.GetQualityLeaderboard)
	api.GET("/stats", h.GetServerStats)
	api.GET("/members/:id", h.GetMemberProfile)
	api.GET("/members/:id/purchases", h.GetMemberPurchases)
	api.GET("/pardons", h.GetPardons)
}

// GetTopContributors returns the all-time contributor leaderboard.
// GET /api/v1/leaderboard?limit=10.
func (h *Handler) GetTopContributors(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries := h.leaderboardService.TopContributors(c.Request.Context(), limit)

	h.log.Debug().
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved contributor leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetMonthlyLeaderboard returns the weighted-score leaderboard of a month.
// GET /api/v1/leaderboard/monthly?month=2024-0&limit=10. The month defaults to the current one.
func (h *Handler) GetMonthlyLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	monthKey := c.DefaultQuery("month", h.leaderboardService.CurrentMonthKey())

	entries := h.activityService.MonthlyLeaderboard(c.Request.Context(), monthKey, limit)

	h.log.Debug().
		Str("month_key", monthKey).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved monthly leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"month":         monthKey,
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetQualityLeaderboard returns contributors ranked by average peer rating.
// GET /api/v1/leaderboard/quality?limit=10.
func (h *Handler) GetQualityLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries := h.ratingService.QualityLeaderboard(c.Request.Context(), limit)

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetServerStats returns ledger-wide totals.
// GET /api/v1/stats.
func (h *Handler) GetServerStats(c *gin.Context) {
	stats := h.leaderboardService.ServerStats(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetMemberProfile returns a member's record, rank and current-month activity.
// GET /api/v1/members/:id.
func (h *Handler) GetMemberProfile(c *gin.Context) {
	memberID, err := h.parseMemberID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.leaderboardService.MemberProfile(c.Request.Context(), memberID)
	if errors.Is(err, repository.ErrNotFound) {
		h.errorResponse(c, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("member_id", memberID).Msg("Failed to get member profile")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve member")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":      profile,
		"generated_at": time.Now().UTC(),
	})
}

// GetMemberPurchases returns the items a member owns.
// GET /api/v1/members/:id/purchases.
func (h *Handler) GetMemberPurchases(c *gin.Context) {
	memberID, err := h.parseMemberID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	items := h.purchaseService.ListFor(c.Request.Context(), memberID)

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"items":     items,
		"total":     len(items),
	})
}

// GetPardons returns the pardons of a month.
// GET /api/v1/pardons?month=2024-0. The month defaults to the current one.
func (h *Handler) GetPardons(c *gin.Context) {
	monthKey := c.DefaultQuery("month", h.leaderboardService.CurrentMonthKey())

	entries := h.pardonService.ListForMonth(c.Request.Context(), monthKey)

	c.JSON(http.StatusOK, gin.H{
		"month":   monthKey,
		"pardons": entries,
		"total":   len(entries),
	})
}

// Health reports store reachability.
// GET /health.
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Health(); err != nil {
			h.log.Warn().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Helper functions

// parseMemberID extracts the opaque member ID from the URL.
func (h *Handler) parseMemberID(c *gin.Context) (string, error) {
	memberID := c.Param("id")
	if memberID == "" {
		return "", fmt.Errorf("member id is required")
	}
	if len(memberID) > 64 {
		return "", fmt.Errorf("member id too long")
	}
	return memberID, nil
}

// parseLimit parses and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
