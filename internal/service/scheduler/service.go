// Package scheduler runs the nightly maintenance job: a badge catch-up
// sweep over recently active accounts and a refresh of the exported
// gauges that would otherwise drift between deposits.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ecocampus/rvm-backend/internal/config"
	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/internal/service/badges"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// sweepLookback bounds the badge catch-up sweep to accounts that were
// active since the previous run, with an hour of slack.
const sweepLookback = 25 * time.Hour

// Service handles the nightly maintenance schedule.
type Service struct {
	config       *config.Config
	db           *repository.DB
	badgeService *badges.Service
	log          *logger.Logger
	cron         *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(cfg *config.Config, db *repository.DB, badgeService *badges.Service, log *logger.Logger) *Service {
	return &Service{
		config:       cfg,
		db:           db,
		badgeService: badgeService,
		log:          log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.config.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	if _, err := s.cron.AddFunc(cronExpr, func() {
		s.runMaintenance(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register maintenance job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Scheduler.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a daily cron expression from config.
func (s *Service) buildCronExpression() (string, error) {
	// Parse time string (format: "HH:MM")
	parts := strings.Split(s.config.Scheduler.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Scheduler.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runMaintenance executes the nightly job: badge sweep first, then gauge
// refresh so the exported values reflect any grants the sweep made.
func (s *Service) runMaintenance(ctx context.Context) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun()
	}()

	s.log.Info().Msg("Starting nightly maintenance")

	swept, err := s.sweepBadges(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Badge sweep failed")
		prommetrics.RecordSchedulerJobRun("error")
		return
	}

	if err := s.refreshGauges(); err != nil {
		s.log.Error().Err(err).Msg("Gauge refresh failed")
		prommetrics.RecordSchedulerJobRun("error")
		return
	}

	prommetrics.RecordSchedulerJobRun("success")
	s.log.Info().
		Int("accounts_swept", swept).
		Dur("duration", time.Since(start)).
		Msg("Nightly maintenance completed")
}

// sweepBadges re-evaluates badges for accounts active since the last run.
// Grants normally land inline with the deposit; the sweep catches any
// account whose inline evaluation was interrupted.
func (s *Service) sweepBadges(ctx context.Context) (int, error) {
	accounts, err := repository.NewAccountRepository(s.db).List(true)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	cutoff := time.Now().UTC().Add(-sweepLookback)
	swept := 0
	for i := range accounts {
		account := &accounts[i]
		if account.LastActivityAt == nil || account.LastActivityAt.Before(cutoff) {
			continue
		}
		if _, err := s.badgeService.EvaluateAccount(ctx, account.ID); err != nil {
			s.log.Warn().Err(err).Uint("account_id", account.ID).Msg("Badge sweep skipped account")
			continue
		}
		swept++
	}

	return swept, nil
}

// refreshGauges recomputes the exported gauges from the database.
func (s *Service) refreshGauges() error {
	accountRepo := repository.NewAccountRepository(s.db)
	activeAccounts, err := accountRepo.CountActive()
	if err != nil {
		return fmt.Errorf("failed to count active accounts: %w", err)
	}
	prommetrics.SetActiveAccounts(activeAccounts)

	totals, err := repository.NewTransactionRepository(s.db).SumImpact()
	if err != nil {
		return fmt.Errorf("failed to sum impact: %w", err)
	}
	prommetrics.SetCO2AvoidedKG(totals.CO2AvoidedKG)

	rewards, err := repository.NewRewardRepository(s.db).List(false)
	if err != nil {
		return fmt.Errorf("failed to list rewards: %w", err)
	}
	for i := range rewards {
		prommetrics.SetRewardStock(rewards[i].Name, rewards[i].Stock)
	}

	badgeRepo := repository.NewBadgeRepository(s.db)
	allBadges, err := badgeRepo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to list badges: %w", err)
	}
	for i := range allBadges {
		holders, err := badgeRepo.HolderCount(allBadges[i].ID)
		if err != nil {
			return fmt.Errorf("failed to count badge holders: %w", err)
		}
		prommetrics.SetActiveBadgeHolders(allBadges[i].Name, int(holders))
	}

	return nil
}
