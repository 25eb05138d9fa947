// Package rewards provides REST API handlers for the reward catalog and
// the redemption flow: browsing, redeeming, voucher lookup, and
// fulfilment status changes.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/service/catalog"
	"github.com/ecocampus/rvm-backend/internal/service/redemption"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// CatalogService interface for reward catalog management.
type CatalogService interface {
	Create(ctx context.Context, in catalog.CreateInput) (*models.Reward, error)
	List(ctx context.Context, activeOnly bool) ([]models.Reward, error)
	Get(ctx context.Context, id uint) (*models.Reward, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

// RedemptionService interface for the redemption flow.
type RedemptionService interface {
	Redeem(ctx context.Context, accountID, rewardID uint) (*redemption.RedeemResult, error)
	GetRedemption(ctx context.Context, redemptionID uint) (*models.Redemption, error)
	SetStatus(ctx context.Context, redemptionID uint, status string) error
}

// Handler handles reward and redemption API requests.
type Handler struct {
	catalogService    CatalogService
	redemptionService RedemptionService
	log               *logger.Logger
}

// NewHandler creates a new rewards handler.
func NewHandler(catalogService *catalog.Service, redemptionService *redemption.Service, log *logger.Logger) *Handler {
	return &Handler{
		catalogService:    catalogService,
		redemptionService: redemptionService,
		log:               log,
	}
}

// NewHandlerWithInterfaces creates a new rewards handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(catalogService CatalogService, redemptionService RedemptionService, log *logger.Logger) *Handler {
	return &Handler{
		catalogService:    catalogService,
		redemptionService: redemptionService,
		log:               log,
	}
}

// ListRewards returns the catalog, ordered by price ascending. By default
// only active rewards are listed; ?all=true includes retired ones.
// GET /api/v1/rewards?all=true.
func (h *Handler) ListRewards(c *gin.Context) {
	activeOnly := c.Query("all") != "true"

	ctx := context.Background()
	rewards, err := h.catalogService.List(ctx, activeOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list rewards")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards":      rewards,
		"total":        len(rewards),
		"generated_at": time.Now().UTC(),
	})
}

type createRewardRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PointCost   int    `json:"point_cost" binding:"required"`
	Stock       int    `json:"stock"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
}

// CreateReward adds a reward to the catalog.
// POST /api/v1/rewards.
func (h *Handler) CreateReward(c *gin.Context) {
	var req createRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid reward payload: "+err.Error())
		return
	}

	ctx := context.Background()
	reward, err := h.catalogService.Create(ctx, catalog.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		PointCost:   req.PointCost,
		Stock:       req.Stock,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			h.errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("Failed to create reward")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to create reward")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"reward":       reward,
		"generated_at": time.Now().UTC(),
	})
}

// GetReward returns one catalog entry.
// GET /api/v1/rewards/:id.
func (h *Handler) GetReward(c *gin.Context) {
	rewardID, err := h.parseID(c, "reward")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	reward, err := h.catalogService.Get(ctx, rewardID)
	if err != nil {
		if errors.Is(err, models.ErrRewardNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Reward not found")
			return
		}
		h.log.Error().Err(err).Uint("reward_id", rewardID).Msg("Failed to get reward")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reward":       reward,
		"generated_at": time.Now().UTC(),
	})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetRewardActive toggles a reward's availability.
// PATCH /api/v1/rewards/:id/active.
func (h *Handler) SetRewardActive(c *gin.Context) {
	rewardID, err := h.parseID(c, "reward")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	ctx := context.Background()
	if err := h.catalogService.SetActive(ctx, rewardID, *req.Active); err != nil {
		if errors.Is(err, models.ErrRewardNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Reward not found")
			return
		}
		h.log.Error().Err(err).Uint("reward_id", rewardID).Msg("Failed to change reward availability")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to change reward availability")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reward_id":    rewardID,
		"active":       *req.Active,
		"generated_at": time.Now().UTC(),
	})
}

type redeemRequest struct {
	AccountID uint `json:"account_id" binding:"required"`
	RewardID  uint `json:"reward_id" binding:"required"`
}

// Redeem exchanges points for a reward and issues a voucher code.
// POST /api/v1/redemptions.
func (h *Handler) Redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid redemption payload: "+err.Error())
		return
	}

	ctx := context.Background()
	result, err := h.redemptionService.Redeem(ctx, req.AccountID, req.RewardID)
	if err != nil {
		h.redeemError(c, req, err)
		return
	}

	h.log.Info().
		Uint("redemption_id", result.RedemptionID).
		Uint("account_id", req.AccountID).
		Uint("reward_id", req.RewardID).
		Msg("Redeemed reward")

	c.JSON(http.StatusCreated, gin.H{
		"redemption":   result,
		"generated_at": time.Now().UTC(),
	})
}

// redeemError maps redemption precondition failures to HTTP statuses.
func (h *Handler) redeemError(c *gin.Context, req redeemRequest, err error) {
	var insufficient *models.InsufficientPointsError
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		h.errorResponse(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, models.ErrAccountInactive):
		h.errorResponse(c, http.StatusConflict, "Account is deactivated")
	case errors.Is(err, models.ErrRewardNotFound):
		h.errorResponse(c, http.StatusNotFound, "Reward not found")
	case errors.Is(err, models.ErrRewardUnavailable):
		h.errorResponse(c, http.StatusConflict, "Reward is not available")
	case errors.Is(err, models.ErrOutOfStock):
		h.errorResponse(c, http.StatusConflict, "Reward is out of stock")
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficient.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
			"timestamp": time.Now().UTC(),
		})
	default:
		h.log.Error().
			Err(err).
			Uint("account_id", req.AccountID).
			Uint("reward_id", req.RewardID).
			Msg("Failed to redeem reward")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to redeem reward")
	}
}

// GetRedemption returns one redemption, including its voucher code.
// GET /api/v1/redemptions/:id.
func (h *Handler) GetRedemption(c *gin.Context) {
	redemptionID, err := h.parseID(c, "redemption")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	record, err := h.redemptionService.GetRedemption(ctx, redemptionID)
	if err != nil {
		if errors.Is(err, models.ErrRedemptionNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Redemption not found")
			return
		}
		h.log.Error().Err(err).Uint("redemption_id", redemptionID).Msg("Failed to get redemption")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve redemption")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redemption":   record,
		"generated_at": time.Now().UTC(),
	})
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetRedemptionStatus moves a redemption through its fulfilment states.
// Cancelling refunds the points and restores stock exactly once.
// PATCH /api/v1/redemptions/:id/status.
func (h *Handler) SetRedemptionStatus(c *gin.Context) {
	redemptionID, err := h.parseID(c, "redemption")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	ctx := context.Background()
	if err := h.redemptionService.SetStatus(ctx, redemptionID, req.Status); err != nil {
		switch {
		case errors.Is(err, models.ErrRedemptionNotFound):
			h.errorResponse(c, http.StatusNotFound, "Redemption not found")
		case errors.Is(err, models.ErrInvalidStatus):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Uint("redemption_id", redemptionID).Msg("Failed to change redemption status")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to change redemption status")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redemption_id": redemptionID,
		"status":        req.Status,
		"generated_at":  time.Now().UTC(),
	})
}

// Helper functions

// parseID extracts and validates a numeric ID from the URL parameter.
func (h *Handler) parseID(c *gin.Context, kind string) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, idStr)
	}
	return uint(id), nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
