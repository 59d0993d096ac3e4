// Package ledger provides the write side of the REST API: member balances,
// monthly activity, pardons, ratings, cooldowns and purchases.
//
// Every successful write drops the cached leaderboards so reads served by the
// dashboard reflect it immediately.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/internal/service/activity"
	"github.com/aimd54/feedback-ledger/internal/service/cooldowns"
	"github.com/aimd54/feedback-ledger/internal/service/leaderboard"
	"github.com/aimd54/feedback-ledger/internal/service/members"
	"github.com/aimd54/feedback-ledger/internal/service/pardons"
	"github.com/aimd54/feedback-ledger/internal/service/purchases"
	"github.com/aimd54/feedback-ledger/internal/service/ratings"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

// Column sizes of the ledger tables.
const (
	maxMemberIDLength = 64
	maxMonthKeyLength = 16
	maxKindLength     = 64
	maxItemIDLength   = 128
)

// MemberService interface for member record writes.
type MemberService interface {
	ApplyUpdate(ctx context.Context, memberID string, update models.MemberUpdate) error
	RecordFeedback(ctx context.Context, memberID string, credits int64) error
	AdjustCredits(ctx context.Context, memberID string, delta int64) error
	Delete(ctx context.Context, memberID string) (bool, error)
}

// ActivityService interface for monthly activity counters.
type ActivityService interface {
	Get(ctx context.Context, memberID, monthKey string) activity.Counts
	Set(ctx context.Context, memberID, monthKey, kind string, count int64) error
	Increment(ctx context.Context, memberID, monthKey, kind string) (activity.Counts, error)
}

// PardonService interface for pardon grants.
type PardonService interface {
	Grant(ctx context.Context, memberID, monthKey, reason string) error
	Revoke(ctx context.Context, memberID, monthKey string) (bool, error)
	Reason(ctx context.Context, memberID, monthKey string) (string, bool)
}

// RatingService interface for quality rating submissions.
type RatingService interface {
	Submit(ctx context.Context, ratedID, raterID string, rating int, feedbackMessageID string) (*models.QualityRatings, error)
}

// CooldownService interface for action cooldowns.
type CooldownService interface {
	LastUsed(ctx context.Context, memberID, actionKind string) int64
	Touch(ctx context.Context, memberID, actionKind string) error
}

// PurchaseService interface for purchase writes.
type PurchaseService interface {
	Add(ctx context.Context, memberID, itemID string) error
}

// CacheInvalidator drops cached read projections.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Handler handles ledger write requests.
type Handler struct {
	memberService   MemberService
	activityService ActivityService
	pardonService   PardonService
	ratingService   RatingService
	cooldownService CooldownService
	purchaseService PurchaseService
	invalidator     CacheInvalidator
	log             *logger.Logger
}

// NewHandler creates a new ledger handler.
func NewHandler(
	memberService *members.Service,
	activityService *activity.Service,
	pardonService *pardons.Service,
	ratingService *ratings.Service,
	cooldownService *cooldowns.Service,
	purchaseService *purchases.Service,
	leaderboardService *leaderboard.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(memberService, activityService, pardonService, ratingService,
		cooldownService, purchaseService, leaderboardService, log)
}

// NewHandlerWithInterfaces creates a new ledger handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	memberService MemberService,
	activityService ActivityService,
	pardonService PardonService,
	ratingService RatingService,
	cooldownService CooldownService,
	purchaseService PurchaseService,
	invalidator CacheInvalidator,
	log *logger.Logger,
) *Handler {
	return &Handler{
		memberService:   memberService,
		activityService: activityService,
		pardonService:   pardonService,
		ratingService:   ratingService,
		cooldownService: cooldownService,
		purchaseService: purchaseService,
		invalidator:     invalidator,
		log:             log,
	}
}

// RegisterRoutes mounts the write API under /api/v1.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")

	api.PATCH("/members/:id", h.UpdateMember)
	api.DELETE("/members/:id", h.DeleteMember)
	api.POST("/members/:id/feedback", h.RecordFeedback)
	api.POST("/members/:id/credits", h.AdjustCredits)

	api.GET("/members/:id/activity/:month", h.GetActivity)
	api.PUT("/members/:id/activity/:month", h.SetActivity)
	api.POST("/members/:id/activity/:month", h.IncrementActivity)

	api.POST("/members/:id/ratings", h.SubmitRating)

	api.GET("/members/:id/cooldowns/:kind", h.GetCooldown)
	api.POST("/members/:id/cooldowns/:kind", h.TouchCooldown)

	api.POST("/members/:id/purchases", h.AddPurchase)

	api.GET("/pardons/:month/:id", h.GetPardon)
	api.PUT("/pardons/:month/:id", h.GrantPardon)
	api.DELETE("/pardons/:month/:id", h.RevokePardon)
}

// Request bodies.

type feedbackRequest struct {
	Credits int64 `json:"credits"`
}

type creditsRequest struct {
	Delta *int64 `json:"delta" binding:"required"`
}

type setActivityRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Count *int64 `json:"count" binding:"required"`
}

type incrementActivityRequest struct {
	Kind string `json:"kind" binding:"required"`
}

type ratingRequest struct {
	RaterID           string `json:"rater_id" binding:"required,max=64"`
	Rating            int    `json:"rating"`
	FeedbackMessageID string `json:"feedback_message_id" binding:"required,max=64"`
}

type purchaseRequest struct {
	ItemID string `json:"item_id" binding:"required,max=128"`
}

type pardonRequest struct {
	Reason string `json:"reason"`
}

// UpdateMember overwrites the supplied member fields, creating the member if needed.
// PATCH /api/v1/members/:id.
func (h *Handler) UpdateMember(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	var update models.MemberUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.memberService.ApplyUpdate(c.Request.Context(), memberID, update); err != nil {
		h.writeError(c, err, "Failed to update member")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"updated":   update.Columns(),
	})
}

// DeleteMember removes a member and everything keyed by it.
// DELETE /api/v1/members/:id.
func (h *Handler) DeleteMember(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	existed, err := h.memberService.Delete(c.Request.Context(), memberID)
	if err != nil {
		h.writeError(c, err, "Failed to delete member")
		return
	}
	if !existed {
		h.errorResponse(c, http.StatusNotFound, "member not found")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"deleted":   true,
	})
}

// RecordFeedback credits one feedback contribution.
// POST /api/v1/members/:id/feedback {"credits": 5}.
func (h *Handler) RecordFeedback(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	var req feedbackRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.memberService.RecordFeedback(c.Request.Context(), memberID, req.Credits); err != nil {
		h.writeError(c, err, "Failed to record feedback")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"credits":   req.Credits,
	})
}

// AdjustCredits adds a signed delta to the credit balance.
// POST /api/v1/members/:id/credits {"delta": -20}.
func (h *Handler) AdjustCredits(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	var req creditsRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.memberService.AdjustCredits(c.Request.Context(), memberID, *req.Delta); err != nil {
		h.writeError(c, err, "Failed to adjust credits")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"delta":     *req.Delta,
	})
}

// GetActivity returns a member's counters for a month.
// GET /api/v1/members/:id/activity/:month.
func (h *Handler) GetActivity(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}
	monthKey, ok := h.param(c, "month", maxMonthKeyLength)
	if !ok {
		return
	}

	counts := h.activityService.Get(c.Request.Context(), memberID, monthKey)
	h.activityResponse(c, http.StatusOK, memberID, monthKey, counts)
}

// SetActivity overwrites one monthly counter.
// PUT /api/v1/members/:id/activity/:month {"kind": "document", "count": 3}.
func (h *Handler) SetActivity(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}
	monthKey, ok := h.param(c, "month", maxMonthKeyLength)
	if !ok {
		return
	}

	var req setActivityRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.activityService.Set(ctx, memberID, monthKey, req.Kind, *req.Count); err != nil {
		h.writeError(c, err, "Failed to set monthly activity")
		return
	}
	h.invalidate(c)

	h.activityResponse(c, http.StatusOK, memberID, monthKey, h.activityService.Get(ctx, memberID, monthKey))
}

// IncrementActivity adds one contribution of a kind to the month.
// POST /api/v1/members/:id/activity/:month {"kind": "comment"}.
func (h *Handler) IncrementActivity(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}
	monthKey, ok := h.param(c, "month", maxMonthKeyLength)
	if !ok {
		return
	}

	var req incrementActivityRequest
	if !h.bind(c, &req) {
		return
	}

	counts, err := h.activityService.Increment(c.Request.Context(), memberID, monthKey, req.Kind)
	if err != nil {
		h.writeError(c, err, "Failed to increment monthly activity")
		return
	}
	h.invalidate(c)

	h.activityResponse(c, http.StatusOK, memberID, monthKey, counts)
}

// SubmitRating records a peer rating of one of the member's feedback messages.
// POST /api/v1/members/:id/ratings {"rater_id": "bob", "rating": 3, "feedback_message_id": "m-1"}.
func (h *Handler) SubmitRating(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	var req ratingRequest
	if !h.bind(c, &req) {
		return
	}

	aggregate, err := h.ratingService.Submit(c.Request.Context(), memberID, req.RaterID, req.Rating, req.FeedbackMessageID)
	if err != nil {
		h.writeError(c, err, "Failed to submit rating")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusCreated, gin.H{
		"member_id":       memberID,
		"quality_ratings": aggregate,
	})
}

// GetCooldown returns when the member last used an action, 0 when never.
// GET /api/v1/members/:id/cooldowns/:kind.
func (h *Handler) GetCooldown(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}
	kind, ok := h.param(c, "kind", maxKindLength)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member_id":   memberID,
		"action_kind": kind,
		"last_used":   h.cooldownService.LastUsed(c.Request.Context(), memberID, kind),
	})
}

// TouchCooldown stamps the action as used now.
// POST /api/v1/members/:id/cooldowns/:kind.
func (h *Handler) TouchCooldown(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}
	kind, ok := h.param(c, "kind", maxKindLength)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.cooldownService.Touch(ctx, memberID, kind); err != nil {
		h.writeError(c, err, "Failed to touch cooldown")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusOK, gin.H{
		"member_id":   memberID,
		"action_kind": kind,
		"last_used":   h.cooldownService.LastUsed(ctx, memberID, kind),
	})
}

// AddPurchase records that the member owns an item. Repurchasing is not an error.
// POST /api/v1/members/:id/purchases {"item_id": "quill"}.
func (h *Handler) AddPurchase(c *gin.Context) {
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	var req purchaseRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.purchaseService.Add(c.Request.Context(), memberID, req.ItemID); err != nil {
		h.writeError(c, err, "Failed to add purchase")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusCreated, gin.H{
		"member_id": memberID,
		"item_id":   req.ItemID,
	})
}

// GetPardon returns the reason of a member's pardon for a month.
// GET /api/v1/pardons/:month/:id.
func (h *Handler) GetPardon(c *gin.Context) {
	monthKey, ok := h.param(c, "month", maxMonthKeyLength)
	if !ok {
		return
	}
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	reason, pardoned := h.pardonService.Reason(c.Request.Context(), memberID, monthKey)
	if !pardoned {
		h.errorResponse(c, http.StatusNotFound, "pardon not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"month":     monthKey,
		"reason":    reason,
	})
}

// GrantPardon exempts a member from the month's quota. Re-granting overwrites the reason.
// PUT /api/v1/pardons/:month/:id {"reason": "travel"}.
func (h *Handler) GrantPardon(c *gin.Context) {
	monthKey, ok := h.param(c, "month", maxMonthKeyLength)
	if !ok {
		return
	}
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	var req pardonRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.pardonService.Grant(ctx, memberID, monthKey, req.Reason); err != nil {
		h.writeError(c, err, "Failed to grant pardon")
		return
	}
	h.invalidate(c)

	reason, _ := h.pardonService.Reason(ctx, memberID, monthKey)
	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"month":     monthKey,
		"reason":    reason,
	})
}

// RevokePardon removes a member's pardon for a month.
// DELETE /api/v1/pardons/:month/:id.
func (h *Handler) RevokePardon(c *gin.Context) {
	monthKey, ok := h.param(c, "month", maxMonthKeyLength)
	if !ok {
		return
	}
	memberID, ok := h.param(c, "id", maxMemberIDLength)
	if !ok {
		return
	}

	removed, err := h.pardonService.Revoke(c.Request.Context(), memberID, monthKey)
	if err != nil {
		h.writeError(c, err, "Failed to revoke pardon")
		return
	}
	if !removed {
		h.errorResponse(c, http.StatusNotFound, "pardon not found")
		return
	}
	h.invalidate(c)

	c.JSON(http.StatusOK, gin.H{
		"member_id": memberID,
		"month":     monthKey,
		"revoked":   true,
	})
}

// Helper functions

// param reads a path parameter and rejects values the ledger columns cannot hold.
func (h *Handler) param(c *gin.Context, name string, maxLength int) (string, bool) {
	value := c.Param(name)
	if value == "" {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("%s is required", name))
		return "", false
	}
	if len(value) > maxLength {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("%s too long", name))
		return "", false
	}
	return value, true
}

// bind decodes and validates the JSON body.
func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) invalidate(c *gin.Context) {
	if h.invalidator != nil {
		h.invalidator.Invalidate(c.Request.Context())
	}
}

func (h *Handler) activityResponse(c *gin.Context, status int, memberID, monthKey string, counts activity.Counts) {
	c.JSON(status, gin.H{
		"member_id":      memberID,
		"month":          monthKey,
		"docs":           counts.Docs,
		"comments":       counts.Comments,
		"weighted_score": counts.WeightedScore(),
	})
}

// writeError maps ledger errors to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrDuplicateRating):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrInvalidRating),
		errors.Is(err, repository.ErrConstraintViolation),
		errors.Is(err, activity.ErrInvalidCount):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrStorageUnavailable):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		h.errorResponse(c, http.StatusServiceUnavailable, message)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
