// Package stats aggregates systemwide activity and environmental impact
// into read models for the public dashboard.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecocampus/rvm-backend/internal/cache"
	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Equivalence factors used to translate raw impact numbers into figures
// people can picture. Trees are CO2 kg absorbed per tree per year; water
// and energy are per-container production savings.
const (
	co2KGPerTree     = 22.0
	litresPerDeposit = 3.0
	kwhPerDeposit    = 0.04
)

// AccountRepository interface for account totals.
type AccountRepository interface {
	CountActive() (int64, error)
	SumPoints() (int64, error)
}

// TransactionRepository interface for deposit totals.
type TransactionRepository interface {
	Count() (int64, error)
	SumImpact() (*repository.ImpactTotals, error)
}

// SystemStats summarizes the whole installation.
type SystemStats struct {
	ActiveAccounts int64 `json:"active_accounts"`
	TotalDeposits  int64 `json:"total_deposits"`
	PointsBalance  int64 `json:"points_balance"`
}

// ImpactReport expresses cumulative environmental impact, both raw and
// as everyday equivalences.
type ImpactReport struct {
	Deposits        int64   `json:"deposits"`
	WeightKG        float64 `json:"weight_kg"`
	CO2AvoidedKG    float64 `json:"co2_avoided_kg"`
	TreesEquivalent float64 `json:"trees_equivalent"`
	WaterLitres     float64 `json:"water_litres"`
	EnergyKWh       float64 `json:"energy_kwh"`
}

// Service computes dashboard aggregates.
type Service struct {
	accountRepo AccountRepository
	txnRepo     TransactionRepository
	cache       cache.Cache
	cacheTTL    time.Duration
	log         *logger.Logger
}

// NewService creates a new stats service with concrete repository types.
// cache may be nil when caching is disabled.
func NewService(db *repository.DB, c cache.Cache, cacheTTL time.Duration, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		c,
		cacheTTL,
		log,
	)
}

// NewServiceWithInterfaces creates a new stats service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	accountRepo AccountRepository,
	txnRepo TransactionRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		cache:       c,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

// GetSystemStats returns installation-wide activity totals.
func (s *Service) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var cached SystemStats
	if s.readCache(ctx, cache.KeySystemStats, &cached) {
		return &cached, nil
	}

	activeAccounts, err := s.accountRepo.CountActive()
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}

	deposits, err := s.txnRepo.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count deposits: %w", err)
	}

	points, err := s.accountRepo.SumPoints()
	if err != nil {
		return nil, fmt.Errorf("failed to sum points: %w", err)
	}

	stats := &SystemStats{
		ActiveAccounts: activeAccounts,
		TotalDeposits:  deposits,
		PointsBalance:  points,
	}
	prommetrics.SetActiveAccounts(activeAccounts)

	s.writeCache(ctx, cache.KeySystemStats, stats)
	return stats, nil
}

// GetImpactReport returns the cumulative environmental impact with its
// everyday equivalences.
func (s *Service) GetImpactReport(ctx context.Context) (*ImpactReport, error) {
	var cached ImpactReport
	if s.readCache(ctx, cache.KeyImpact, &cached) {
		return &cached, nil
	}

	totals, err := s.txnRepo.SumImpact()
	if err != nil {
		return nil, fmt.Errorf("failed to sum impact: %w", err)
	}

	report := &ImpactReport{
		Deposits:        totals.Deposits,
		WeightKG:        totals.WeightKG,
		CO2AvoidedKG:    totals.CO2AvoidedKG,
		TreesEquivalent: totals.CO2AvoidedKG / co2KGPerTree,
		WaterLitres:     float64(totals.Deposits) * litresPerDeposit,
		EnergyKWh:       float64(totals.Deposits) * kwhPerDeposit,
	}
	prommetrics.SetCO2AvoidedKG(totals.CO2AvoidedKG)

	s.writeCache(ctx, cache.KeyImpact, report)
	return report, nil
}

func (s *Service) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Stats cache read failed")
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed stats cache entry")
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
	}
}
