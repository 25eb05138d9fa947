// Package redemption exchanges points for catalog rewards and manages
// the lifecycle of the resulting vouchers.
package redemption

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecocampus/rvm-backend/internal/cache"
	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// voucherAttempts bounds collision retries; the 8-hex-char space makes
// more than one retry vanishingly unlikely.
const voucherAttempts = 5

// Service is the redemption engine.
type Service struct {
	db    *repository.DB
	cache cache.Cache
	log   *logger.Logger
}

// NewService creates a new redemption service. cache may be nil when
// caching is disabled.
func NewService(db *repository.DB, c cache.Cache, log *logger.Logger) *Service {
	return &Service{db: db, cache: c, log: log}
}

// RedeemResult is returned to the caller after a successful redemption.
type RedeemResult struct {
	RedemptionID     uint   `json:"redemption_id"`
	VoucherCode      string `json:"voucher_code"`
	RemainingBalance int    `json:"remaining_balance"`
}

// Redeem debits an account for a reward and issues a voucher.
//
// Preconditions are checked in a fixed order, first failure wins:
// account exists, reward exists, reward active, stock available,
// balance sufficient. On success the debit, the stock decrement, and
// the redemption row commit as one unit; the price actually charged is
// snapshotted into the row so later catalog edits cannot rewrite history.
func (s *Service) Redeem(ctx context.Context, accountID, rewardID uint) (*RedeemResult, error) {
	var (
		result RedeemResult
		reward *models.Reward
	)
	err := s.db.Transaction(func(tx *repository.DB) error {
		accountRepo := repository.NewAccountRepository(tx)
		rewardRepo := repository.NewRewardRepository(tx)

		account, err := accountRepo.GetByID(accountID)
		if err != nil {
			return err
		}

		reward, err = rewardRepo.GetByID(rewardID)
		if err != nil {
			return err
		}
		if !reward.Active {
			return models.ErrRewardUnavailable
		}
		if reward.Stock <= 0 {
			return models.ErrOutOfStock
		}
		if account.Points < reward.PointCost {
			return &models.InsufficientPointsError{
				Required:  reward.PointCost,
				Available: account.Points,
			}
		}

		// Conditional updates so a concurrent redemption cannot drive
		// the balance or the stock negative.
		debited, err := accountRepo.DebitPoints(accountID, reward.PointCost)
		if err != nil {
			return err
		}
		if !debited {
			return &models.InsufficientPointsError{
				Required:  reward.PointCost,
				Available: account.Points,
			}
		}

		decremented, err := rewardRepo.DecrementStock(rewardID)
		if err != nil {
			return err
		}
		if !decremented {
			return models.ErrOutOfStock
		}

		code, err := s.uniqueVoucherCode(tx)
		if err != nil {
			return err
		}

		redemption := &models.Redemption{
			AccountID:   accountID,
			RewardID:    rewardID,
			PointsSpent: reward.PointCost,
			VoucherCode: code,
			Status:      models.RedemptionStatusPending,
		}
		if err := repository.NewRedemptionRepository(tx).Create(redemption); err != nil {
			return err
		}

		result = RedeemResult{
			RedemptionID:     redemption.ID,
			VoucherCode:      redemption.VoucherCode,
			RemainingBalance: account.Points - reward.PointCost,
		}
		return nil
	})
	if err != nil {
		return nil, s.rejectRedeem(accountID, rewardID, err)
	}

	prommetrics.RecordRedemption(models.RedemptionStatusPending, reward.Category, reward.PointCost)
	prommetrics.SetRewardStock(reward.Name, reward.Stock-1)
	s.invalidateDerived(ctx)

	s.log.Info().
		Uint("account_id", accountID).
		Uint("reward_id", rewardID).
		Uint("redemption_id", result.RedemptionID).
		Int("points_spent", reward.PointCost).
		Str("voucher_code", result.VoucherCode).
		Msg("Reward redeemed")

	return &result, nil
}

// SetStatus transitions a redemption to a new status.
//
// Transitioning to cancelled from any other status refunds the
// snapshotted points and restores one unit of stock, exactly once;
// re-cancelling an already-cancelled redemption is a status no-op with
// no balance effects. No other transition has side effects.
func (s *Service) SetStatus(ctx context.Context, redemptionID uint, status string) error {
	if !models.ValidRedemptionStatus(status) {
		return models.ErrInvalidStatus
	}

	var refunded int
	err := s.db.Transaction(func(tx *repository.DB) error {
		redemptionRepo := repository.NewRedemptionRepository(tx)

		redemption, err := redemptionRepo.GetByID(redemptionID)
		if err != nil {
			return err
		}
		if redemption.Status == status {
			return nil
		}

		if status == models.RedemptionStatusCancelled {
			err := repository.NewAccountRepository(tx).CreditPoints(redemption.AccountID, redemption.PointsSpent)
			if err != nil {
				return err
			}
			if err := repository.NewRewardRepository(tx).IncrementStock(redemption.RewardID); err != nil {
				return err
			}
			refunded = redemption.PointsSpent
		}

		return redemptionRepo.UpdateStatus(redemptionID, status)
	})
	if err != nil {
		if errors.Is(err, models.ErrRedemptionNotFound) {
			return err
		}
		s.log.Error().Err(err).Uint("redemption_id", redemptionID).Msg("Status transition failed")
		return fmt.Errorf("%w: failed to update redemption status: %v", models.ErrInternal, err)
	}

	if refunded > 0 {
		prommetrics.RecordRedemptionCancelled(refunded)
		s.invalidateDerived(ctx)
	}

	s.log.Info().
		Uint("redemption_id", redemptionID).
		Str("status", status).
		Int("points_refunded", refunded).
		Msg("Redemption status updated")

	return nil
}

// GetRedemption retrieves one redemption with its reward preloaded.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetRedemption(ctx context.Context, redemptionID uint) (*models.Redemption, error) {
	return repository.NewRedemptionRepository(s.db).GetByID(redemptionID)
}

// GetHistory retrieves an account's redemptions, newest first.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetHistory(ctx context.Context, accountID uint) ([]models.Redemption, error) {
	if _, err := repository.NewAccountRepository(s.db).GetByID(accountID); err != nil {
		return nil, err
	}
	return repository.NewRedemptionRepository(s.db).ListByAccount(accountID)
}

// uniqueVoucherCode generates a voucher code not yet present in the
// redemptions table. The unique index on the column backstops the check.
func (s *Service) uniqueVoucherCode(tx *repository.DB) (string, error) {
	redemptionRepo := repository.NewRedemptionRepository(tx)
	for i := 0; i < voucherAttempts; i++ {
		code := models.GenerateVoucherCode()
		exists, err := redemptionRepo.VoucherCodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique voucher code after %d attempts", voucherAttempts)
}

// rejectRedeem maps a failed redemption to its typed error and counts
// the rejection reason.
func (s *Service) rejectRedeem(accountID, rewardID uint, err error) error {
	var insufficient *models.InsufficientPointsError
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		prommetrics.RecordRedemptionRejected("account_not_found")
		return err
	case errors.Is(err, models.ErrRewardNotFound):
		prommetrics.RecordRedemptionRejected("reward_not_found")
		return err
	case errors.Is(err, models.ErrRewardUnavailable):
		prommetrics.RecordRedemptionRejected("reward_unavailable")
		return err
	case errors.Is(err, models.ErrOutOfStock):
		prommetrics.RecordRedemptionRejected("out_of_stock")
		return err
	case errors.As(err, &insufficient):
		prommetrics.RecordRedemptionRejected("insufficient_points")
		return err
	default:
		prommetrics.RecordRedemptionRejected("internal")
		s.log.Error().Err(err).
			Uint("account_id", accountID).
			Uint("reward_id", rewardID).
			Msg("Redemption transaction failed")
		return fmt.Errorf("%w: failed to redeem reward: %v", models.ErrInternal, err)
	}
}

// invalidateDerived drops cached read models a balance change makes stale.
func (s *Service) invalidateDerived(ctx context.Context) {
	if s.cache == nil {
		return
	}
	err := s.cache.Delete(ctx, cache.KeyLeaderboard, cache.KeySystemStats)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate cached read models")
	}
}
