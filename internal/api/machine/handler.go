// Package machine provides the REST API consumed by the reverse vending
// machine firmware: card verification before a session and deposit
// recording after the classifier accepts an object.
package machine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/service/accounts"
	"github.com/ecocampus/rvm-backend/internal/service/ledger"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// AccountService interface for card verification.
type AccountService interface {
	GetByCard(ctx context.Context, cardUID string) (*models.Account, error)
}

// LedgerService interface for deposit recording.
type LedgerService interface {
	RecordRecycling(ctx context.Context, in ledger.DepositInput) (*ledger.DepositResult, error)
}

// Handler handles machine API requests.
type Handler struct {
	accountService AccountService
	ledgerService  LedgerService
	log            *logger.Logger
}

// NewHandler creates a new machine handler.
func NewHandler(accountService *accounts.Service, ledgerService *ledger.Service, log *logger.Logger) *Handler {
	return &Handler{
		accountService: accountService,
		ledgerService:  ledgerService,
		log:            log,
	}
}

// NewHandlerWithInterfaces creates a new machine handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(accountService AccountService, ledgerService LedgerService, log *logger.Logger) *Handler {
	return &Handler{
		accountService: accountService,
		ledgerService:  ledgerService,
		log:            log,
	}
}

// VerifyCard resolves a card UID to the account the machine should greet.
// GET /api/v1/machine/cards/:uid.
func (h *Handler) VerifyCard(c *gin.Context) {
	uid := c.Param("uid")
	if uid == "" {
		h.errorResponse(c, http.StatusBadRequest, "card UID is required")
		return
	}

	ctx := context.Background()
	account, err := h.accountService.GetByCard(ctx, uid)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountNotFound):
			h.errorResponse(c, http.StatusNotFound, "Card not registered")
		case errors.Is(err, models.ErrAccountInactive):
			h.errorResponse(c, http.StatusConflict, "Account is deactivated")
		default:
			h.log.Error().Err(err).Str("card_uid", uid).Msg("Failed to verify card")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to verify card")
		}
		return
	}

	h.log.Info().
		Uint("account_id", account.ID).
		Str("card_uid", account.CardUID).
		Msg("Verified card")

	c.JSON(http.StatusOK, gin.H{
		"account_id":   account.ID,
		"name":         account.FullName(),
		"points":       account.Points,
		"level":        account.Level,
		"streak_days":  account.StreakDays,
		"generated_at": time.Now().UTC(),
	})
}

type depositRequest struct {
	CardUID              string   `json:"card_uid" binding:"required"`
	Points               int      `json:"points"`
	ObjectType           string   `json:"object_type" binding:"required"`
	ClassifierLabel      *string  `json:"classifier_label"`
	ClassifierConfidence *float64 `json:"classifier_confidence"`
	ImagePath            *string  `json:"image_path"`
}

// RecordDeposit records one accepted deposit and returns the state the
// machine renders back on its display.
// POST /api/v1/machine/deposits.
func (h *Handler) RecordDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid deposit payload: "+err.Error())
		return
	}

	ctx := context.Background()
	result, err := h.ledgerService.RecordRecycling(ctx, ledger.DepositInput{
		CardUID:              req.CardUID,
		Points:               req.Points,
		ObjectType:           req.ObjectType,
		ClassifierLabel:      req.ClassifierLabel,
		ClassifierConfidence: req.ClassifierConfidence,
		ImagePath:            req.ImagePath,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountNotFound):
			h.errorResponse(c, http.StatusNotFound, "Card not registered")
		case errors.Is(err, models.ErrAccountInactive):
			h.errorResponse(c, http.StatusConflict, "Account is deactivated")
		case errors.Is(err, models.ErrInvalidAmount):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Str("card_uid", req.CardUID).Msg("Failed to record deposit")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to record deposit")
		}
		return
	}

	h.log.Info().
		Uint("transaction_id", result.TransactionID).
		Str("card_uid", req.CardUID).
		Int("points", req.Points).
		Msg("Recorded deposit")

	c.JSON(http.StatusCreated, gin.H{
		"deposit":      result,
		"generated_at": time.Now().UTC(),
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
