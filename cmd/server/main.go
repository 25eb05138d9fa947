// Command server runs the recycling reward backend: the HTTP API used by
// the vending machines, the registration kiosk, and the public dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecocampus/rvm-backend/internal/api"
	"github.com/ecocampus/rvm-backend/internal/api/accountsapi"
	"github.com/ecocampus/rvm-backend/internal/api/dashboard"
	"github.com/ecocampus/rvm-backend/internal/api/machine"
	"github.com/ecocampus/rvm-backend/internal/api/rewards"
	"github.com/ecocampus/rvm-backend/internal/cache"
	"github.com/ecocampus/rvm-backend/internal/config"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/internal/seed"
	"github.com/ecocampus/rvm-backend/internal/service/accounts"
	"github.com/ecocampus/rvm-backend/internal/service/badges"
	"github.com/ecocampus/rvm-backend/internal/service/catalog"
	"github.com/ecocampus/rvm-backend/internal/service/leaderboard"
	"github.com/ecocampus/rvm-backend/internal/service/ledger"
	"github.com/ecocampus/rvm-backend/internal/service/redemption"
	"github.com/ecocampus/rvm-backend/internal/service/scheduler"
	"github.com/ecocampus/rvm-backend/internal/service/stats"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if cfg.Seed.Badges {
		if err := seed.Badges(db, log); err != nil {
			return fmt.Errorf("badge seed: %w", err)
		}
	}
	if cfg.Seed.Rewards {
		if err := seed.Rewards(db, log); err != nil {
			return fmt.Errorf("reward seed: %w", err)
		}
	}

	var cacheClient cache.Cache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer redisCache.Close()
		cacheClient = redisCache
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Connected to Redis")
	} else {
		log.Info().Msg("Cache disabled, derived views served from the database")
	}

	leaderboardTTL := time.Duration(cfg.Cache.LeaderboardTTL) * time.Second
	statsTTL := time.Duration(cfg.Cache.StatsTTL) * time.Second

	accountService := accounts.NewService(db, cfg.Gamification.WelcomePoints, log)
	ledgerService := ledger.NewService(db, cacheClient, log)
	badgeService := badges.NewService(db, log)
	catalogService := catalog.NewService(db, log)
	redemptionService := redemption.NewService(db, cacheClient, log)
	leaderboardService := leaderboard.NewService(db, cacheClient, leaderboardTTL, log)
	statsService := stats.NewService(db, cacheClient, statsTTL, log)

	maintenance := scheduler.NewService(cfg, db, badgeService, log)
	if err := maintenance.Start(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer maintenance.Stop()

	router := api.NewRouter(cfg, db, cacheClient, api.Handlers{
		Machine:   machine.NewHandler(accountService, ledgerService, log),
		Accounts:  accountsapi.NewHandler(accountService, leaderboardService, badgeService, ledgerService, redemptionService, log),
		Rewards:   rewards.NewHandler(catalogService, redemptionService, log),
		Dashboard: dashboard.NewHandler(badgeService, leaderboardService, statsService, ledgerService, log),
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
