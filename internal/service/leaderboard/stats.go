package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecocampus/rvm-backend/internal/models"
)

// AccountStats summarizes one account's activity for profile screens.
type AccountStats struct {
	AccountID       uint    `json:"account_id"`
	Name            string  `json:"name"`
	Points          int     `json:"points"`
	Level           int     `json:"level"`
	StreakDays      int     `json:"streak_days"`
	Deposits        int64   `json:"deposits"`
	BadgeCount      int64   `json:"badge_count"`
	RedemptionCount int64   `json:"redemption_count"`
	WeightKG        float64 `json:"weight_kg"`
	CO2AvoidedKG    float64 `json:"co2_avoided_kg"`
}

// GetAccountStats builds activity statistics for one account.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetAccountStats(ctx context.Context, accountID uint) (*AccountStats, error) {
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	deposits, err := s.txnRepo.CountByAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count deposits: %w", err)
	}

	badgeCount, err := s.badgeRepo.CountByAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count badges: %w", err)
	}

	redemptionCount, err := s.redemptionRepo.CountByAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count redemptions: %w", err)
	}

	impact, err := s.txnRepo.SumImpactByAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum impact: %w", err)
	}

	return &AccountStats{
		AccountID:       account.ID,
		Name:            account.FullName(),
		Points:          account.Points,
		Level:           account.Level,
		StreakDays:      account.StreakDays,
		Deposits:        deposits,
		BadgeCount:      badgeCount,
		RedemptionCount: redemptionCount,
		WeightKG:        impact.WeightKG,
		CO2AvoidedKG:    impact.CO2AvoidedKG,
	}, nil
}
