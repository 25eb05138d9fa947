// Package api assembles the HTTP surface: route registration, health
// checking, and the Prometheus exposition endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecocampus/rvm-backend/internal/api/accountsapi"
	"github.com/ecocampus/rvm-backend/internal/api/dashboard"
	"github.com/ecocampus/rvm-backend/internal/api/machine"
	"github.com/ecocampus/rvm-backend/internal/api/rewards"
	"github.com/ecocampus/rvm-backend/internal/cache"
	"github.com/ecocampus/rvm-backend/internal/config"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Handlers bundles the per-area handlers the router mounts.
type Handlers struct {
	Machine   *machine.Handler
	Accounts  *accountsapi.Handler
	Rewards   *rewards.Handler
	Dashboard *dashboard.Handler
}

// NewRouter builds the gin engine with all routes registered. cacheClient
// may be nil when caching is disabled; the health endpoint then skips it.
func NewRouter(cfg *config.Config, db *repository.DB, cacheClient cache.Cache, h Handlers, log *logger.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", healthHandler(db, cacheClient))

	if cfg.Metrics.Prometheus.Enabled {
		router.GET(cfg.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")

	// Machine-facing endpoints
	api.GET("/machine/cards/:uid", h.Machine.VerifyCard)
	api.POST("/machine/deposits", h.Machine.RecordDeposit)

	// Account lifecycle and per-account views
	api.POST("/accounts", h.Accounts.Register)
	api.GET("/accounts/:id", h.Accounts.GetAccount)
	api.GET("/accounts/:id/stats", h.Accounts.GetAccountStats)
	api.GET("/accounts/:id/badges", h.Accounts.GetAccountBadges)
	api.GET("/accounts/:id/transactions", h.Accounts.GetTransactionHistory)
	api.GET("/accounts/:id/redemptions", h.Accounts.GetRedemptionHistory)
	api.PUT("/accounts/:id/card", h.Accounts.LinkCard)
	api.DELETE("/accounts/:id", h.Accounts.Deactivate)

	// Reward catalog and redemptions
	api.GET("/rewards", h.Rewards.ListRewards)
	api.POST("/rewards", h.Rewards.CreateReward)
	api.GET("/rewards/:id", h.Rewards.GetReward)
	api.PATCH("/rewards/:id/active", h.Rewards.SetRewardActive)
	api.POST("/redemptions", h.Rewards.Redeem)
	api.GET("/redemptions/:id", h.Rewards.GetRedemption)
	api.PATCH("/redemptions/:id/status", h.Rewards.SetRedemptionStatus)

	// Public dashboard
	api.GET("/leaderboard", h.Dashboard.GetLeaderboard)
	api.GET("/stats/system", h.Dashboard.GetSystemStats)
	api.GET("/stats/impact", h.Dashboard.GetImpactReport)
	api.GET("/badges", h.Dashboard.GetBadgeCatalog)
	api.GET("/badges/:id/holders", h.Dashboard.GetBadgeHolders)
	api.GET("/transactions/recent", h.Dashboard.GetRecentDeposits)

	log.Info().
		Int("port", cfg.Server.Port).
		Bool("prometheus", cfg.Metrics.Prometheus.Enabled).
		Msg("Routes registered")

	return router
}

// healthHandler reports readiness of the database and, when configured,
// the cache. A degraded cache does not fail the check; derived views fall
// back to the database.
func healthHandler(db *repository.DB, cacheClient cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		components := gin.H{"database": "ok"}

		if err := db.Health(); err != nil {
			status = http.StatusServiceUnavailable
			components["database"] = "unavailable"
		}

		if cacheClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := cacheClient.Health(ctx); err != nil {
				components["cache"] = "unavailable"
			} else {
				components["cache"] = "ok"
			}
		}

		c.JSON(status, gin.H{
			"status":     http.StatusText(status),
			"components": components,
			"checked_at": time.Now().UTC(),
		})
	}
}
