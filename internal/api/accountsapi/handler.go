// Package accountsapi provides REST API handlers for account lifecycle
// and per-account views: registration, profile, card linking, statistics,
// badges, and history.
package accountsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/service/accounts"
	"github.com/ecocampus/rvm-backend/internal/service/badges"
	"github.com/ecocampus/rvm-backend/internal/service/leaderboard"
	"github.com/ecocampus/rvm-backend/internal/service/ledger"
	"github.com/ecocampus/rvm-backend/internal/service/redemption"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// AccountService interface for account lifecycle operations.
type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (*models.Account, error)
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	LinkCard(ctx context.Context, accountID uint, cardUID string) (*models.Account, error)
	Deactivate(ctx context.Context, accountID uint) error
}

// StatsService interface for per-account statistics.
type StatsService interface {
	GetAccountStats(ctx context.Context, accountID uint) (*leaderboard.AccountStats, error)
}

// BadgeService interface for per-account badge listings.
type BadgeService interface {
	GetAccountBadges(ctx context.Context, accountID uint) ([]models.AccountBadge, error)
}

// LedgerService interface for transaction history.
type LedgerService interface {
	GetHistory(ctx context.Context, accountID uint, limit int) ([]models.Transaction, error)
}

// RedemptionService interface for redemption history.
type RedemptionService interface {
	GetHistory(ctx context.Context, accountID uint) ([]models.Redemption, error)
}

// Handler handles account API requests.
type Handler struct {
	accountService    AccountService
	statsService      StatsService
	badgeService      BadgeService
	ledgerService     LedgerService
	redemptionService RedemptionService
	log               *logger.Logger
}

// NewHandler creates a new account handler.
func NewHandler(
	accountService *accounts.Service,
	statsService *leaderboard.Service,
	badgeService *badges.Service,
	ledgerService *ledger.Service,
	redemptionService *redemption.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(accountService, statsService, badgeService, ledgerService, redemptionService, log)
}

// NewHandlerWithInterfaces creates a new account handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	accountService AccountService,
	statsService StatsService,
	badgeService BadgeService,
	ledgerService LedgerService,
	redemptionService RedemptionService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		accountService:    accountService,
		statsService:      statsService,
		badgeService:      badgeService,
		ledgerService:     ledgerService,
		redemptionService: redemptionService,
		log:               log,
	}
}

type registerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	CardUID   string `json:"card_uid"`
}

// Register creates a new account, with or without a physical card.
// POST /api/v1/accounts.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid registration payload: "+err.Error())
		return
	}

	ctx := context.Background()
	account, err := h.accountService.Register(ctx, accounts.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		CardUID:   req.CardUID,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidInput):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, models.ErrDuplicateAccount):
			h.errorResponse(c, http.StatusConflict, "Card or email already registered")
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("Failed to register account")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to register account")
		}
		return
	}

	h.log.Info().
		Uint("account_id", account.ID).
		Bool("physical_card", account.HasPhysicalCard()).
		Msg("Registered account")

	c.JSON(http.StatusCreated, gin.H{
		"account":      account,
		"generated_at": time.Now().UTC(),
	})
}

// GetAccount returns the account profile.
// GET /api/v1/accounts/:id.
func (h *Handler) GetAccount(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	account, err := h.accountService.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to get account")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve account")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":      account,
		"generated_at": time.Now().UTC(),
	})
}

// GetAccountStats returns aggregate statistics for an account.
// GET /api/v1/accounts/:id/stats.
func (h *Handler) GetAccountStats(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	stats, err := h.statsService.GetAccountStats(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to get account stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve account statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetAccountBadges returns badges earned by an account.
// GET /api/v1/accounts/:id/badges.
func (h *Handler) GetAccountBadges(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	accountBadges, err := h.badgeService.GetAccountBadges(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to get account badges")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve account badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":   accountID,
		"badges":       accountBadges,
		"total_badges": len(accountBadges),
		"generated_at": time.Now().UTC(),
	})
}

// GetTransactionHistory returns recent deposits for an account, newest first.
// GET /api/v1/accounts/:id/transactions?limit=20.
func (h *Handler) GetTransactionHistory(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	transactions, err := h.ledgerService.GetHistory(ctx, accountID, limit)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to get transaction history")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve transaction history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":   accountID,
		"transactions": transactions,
		"total":        len(transactions),
		"generated_at": time.Now().UTC(),
	})
}

// GetRedemptionHistory returns redemptions for an account, newest first.
// GET /api/v1/accounts/:id/redemptions.
func (h *Handler) GetRedemptionHistory(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	redemptions, err := h.redemptionService.GetHistory(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to get redemption history")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve redemption history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":   accountID,
		"redemptions":  redemptions,
		"total":        len(redemptions),
		"generated_at": time.Now().UTC(),
	})
}

type linkCardRequest struct {
	CardUID string `json:"card_uid" binding:"required"`
}

// LinkCard attaches a physical card to an account registered without one.
// PUT /api/v1/accounts/:id/card.
func (h *Handler) LinkCard(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req linkCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid card payload: "+err.Error())
		return
	}

	ctx := context.Background()
	account, err := h.accountService.LinkCard(ctx, accountID, req.CardUID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountNotFound):
			h.errorResponse(c, http.StatusNotFound, "Account not found")
		case errors.Is(err, models.ErrInvalidInput):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, models.ErrDuplicateAccount):
			h.errorResponse(c, http.StatusConflict, "Card already registered")
		default:
			h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to link card")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to link card")
		}
		return
	}

	h.log.Info().
		Uint("account_id", account.ID).
		Str("card_uid", account.CardUID).
		Msg("Linked card")

	c.JSON(http.StatusOK, gin.H{
		"account":      account,
		"generated_at": time.Now().UTC(),
	})
}

// Deactivate disables an account. Deposits and redemptions against it are
// rejected afterwards; history is kept.
// DELETE /api/v1/accounts/:id.
func (h *Handler) Deactivate(c *gin.Context) {
	accountID, err := h.parseAccountID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	if err := h.accountService.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Uint("account_id", accountID).Msg("Failed to deactivate account")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to deactivate account")
		return
	}

	h.log.Info().Uint("account_id", accountID).Msg("Deactivated account")

	c.JSON(http.StatusOK, gin.H{
		"account_id":   accountID,
		"active":       false,
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseAccountID extracts and validates the account ID from the URL parameter.
func (h *Handler) parseAccountID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid account ID: %s", idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
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
