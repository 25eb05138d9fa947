// Package dashboard provides REST API handlers for the public dashboard.
// It exposes the leaderboard, system statistics, the environmental impact
// report, the badge catalog, and the live deposit feed.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/service/badges"
	"github.com/ecocampus/rvm-backend/internal/service/leaderboard"
	"github.com/ecocampus/rvm-backend/internal/service/ledger"
	"github.com/ecocampus/rvm-backend/internal/service/stats"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// BadgeService interface for badge catalog operations.
type BadgeService interface {
	GetCatalog(ctx context.Context) ([]models.Badge, error)
	GetHolderCount(ctx context.Context, badgeID uint) (int64, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error)
}

// StatsService interface for system-wide statistics.
type StatsService interface {
	GetSystemStats(ctx context.Context) (*stats.SystemStats, error)
	GetImpactReport(ctx context.Context) (*stats.ImpactReport, error)
}

// LedgerService interface for the live deposit feed.
type LedgerService interface {
	GetRecent(ctx context.Context, limit int) ([]models.Transaction, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	badgeService       BadgeService
	leaderboardService LeaderboardService
	statsService       StatsService
	ledgerService      LedgerService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(
	badgeService *badges.Service,
	leaderboardService *leaderboard.Service,
	statsService *stats.Service,
	ledgerService *ledger.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(badgeService, leaderboardService, statsService, ledgerService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	badgeService BadgeService,
	leaderboardService LeaderboardService,
	statsService StatsService,
	ledgerService LedgerService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		badgeService:       badgeService,
		leaderboardService: leaderboardService,
		statsService:       statsService,
		ledgerService:      ledgerService,
		log:                log,
	}
}

// GetLeaderboard returns the top accounts by point balance.
// GET /api/v1/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	entries, err := h.leaderboardService.GetLeaderboard(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	h.log.Info().
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetSystemStats returns system-wide counters.
// GET /api/v1/stats/system.
func (h *Handler) GetSystemStats(c *gin.Context) {
	ctx := context.Background()
	systemStats, err := h.statsService.GetSystemStats(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get system stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve system statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        systemStats,
		"generated_at": time.Now().UTC(),
	})
}

// GetImpactReport returns accumulated environmental impact with everyday
// equivalences.
// GET /api/v1/stats/impact.
func (h *Handler) GetImpactReport(c *gin.Context) {
	ctx := context.Background()
	report, err := h.statsService.GetImpactReport(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get impact report")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve impact report")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"impact":       report,
		"generated_at": time.Now().UTC(),
	})
}

// GetBadgeCatalog returns all active badge definitions.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	ctx := context.Background()
	catalogBadges, err := h.badgeService.GetCatalog(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get badge catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve badge catalog")
		return
	}

	h.log.Info().
		Int("badge_count", len(catalogBadges)).
		Msg("Retrieved badge catalog")

	c.JSON(http.StatusOK, gin.H{
		"badges":       catalogBadges,
		"total_badges": len(catalogBadges),
		"generated_at": time.Now().UTC(),
	})
}

// GetBadgeHolders returns how many accounts hold a specific badge.
// GET /api/v1/badges/:id/holders.
func (h *Handler) GetBadgeHolders(c *gin.Context) {
	badgeID, err := h.parseBadgeID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	holderCount, err := h.badgeService.GetHolderCount(ctx, badgeID)
	if err != nil {
		h.log.Error().Err(err).Uint("badge_id", badgeID).Msg("Failed to get badge holders")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve badge holders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badge_id":      badgeID,
		"total_holders": holderCount,
		"generated_at":  time.Now().UTC(),
	})
}

// GetRecentDeposits returns the latest deposits across all accounts, for
// the dashboard's live feed.
// GET /api/v1/transactions/recent?limit=20.
func (h *Handler) GetRecentDeposits(c *gin.Context) {
	limit, err := h.parseLimit(c, 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	transactions, err := h.ledgerService.GetRecent(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get recent deposits")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve recent deposits")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"total":        len(transactions),
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseBadgeID extracts and validates the badge ID from the URL parameter.
func (h *Handler) parseBadgeID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid badge ID: %s", idStr)
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
