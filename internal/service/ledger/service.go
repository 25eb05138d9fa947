// Package ledger converts accepted recycling deposits into durable
// account state: points, level, streak, an immutable transaction record,
// and any badge grants the new state unlocks.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecocampus/rvm-backend/internal/cache"
	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/internal/service/badges"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Clock abstracts wall-clock time so streak and badge timestamps are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

// Service is the ledger engine.
type Service struct {
	db    *repository.DB
	cache cache.Cache
	clock Clock
	log   *logger.Logger
}

// NewService creates a new ledger service on the system clock.
// cache may be nil when caching is disabled.
func NewService(db *repository.DB, c cache.Cache, log *logger.Logger) *Service {
	return NewServiceWithClock(db, c, SystemClock(), log)
}

// NewServiceWithClock creates a new ledger service with an injected clock
// (useful for testing).
func NewServiceWithClock(db *repository.DB, c cache.Cache, clock Clock, log *logger.Logger) *Service {
	return &Service{
		db:    db,
		cache: c,
		clock: clock,
		log:   log,
	}
}

// DepositInput describes one accepted deposit as reported by the machine
// and its classification stage. Label and Confidence are informational
// only; acceptance policy ran before this call.
type DepositInput struct {
	CardUID              string
	Points               int
	ObjectType           string
	ClassifierLabel      *string
	ClassifierConfidence *float64
	ImagePath            *string
}

// DepositResult is the state the machine renders back to the user after
// a successful deposit.
type DepositResult struct {
	TransactionID uint           `json:"transaction_id"`
	Balance       int            `json:"balance"`
	Level         int            `json:"level"`
	StreakDays    int            `json:"streak_days"`
	Impact        models.Impact  `json:"impact"`
	BadgesGranted []models.Badge `json:"badges_granted"`
}

// RecordRecycling applies one deposit to the account identified by its
// card UID. The account mutation, the transaction row, and any badge
// grants commit as a single unit; on any persistence failure nothing
// lands and ErrInternal is returned.
func (s *Service) RecordRecycling(ctx context.Context, in DepositInput) (*DepositResult, error) {
	if in.Points <= 0 {
		return nil, models.ErrInvalidAmount
	}

	impact := models.ImpactForObjectType(in.ObjectType)
	now := s.clock.Now()

	var result DepositResult
	err := s.db.Transaction(func(tx *repository.DB) error {
		accountRepo := repository.NewAccountRepository(tx)

		account, err := accountRepo.GetByCardUIDForUpdate(in.CardUID)
		if err != nil {
			return err
		}
		if !account.Active {
			return models.ErrAccountInactive
		}

		account.AddPoints(in.Points)
		account.UpdateStreak(now)
		account.LastActivityAt = &now
		if err := accountRepo.Update(account); err != nil {
			return err
		}

		txn := &models.Transaction{
			AccountID:            account.ID,
			ObjectType:           in.ObjectType,
			PointsAwarded:        in.Points,
			ClassifierLabel:      in.ClassifierLabel,
			ClassifierConfidence: in.ClassifierConfidence,
			WeightKG:             impact.WeightKG,
			CO2AvoidedKG:         impact.CO2AvoidedKG,
			ImagePath:            in.ImagePath,
			CreatedAt:            now,
		}
		if err := repository.NewTransactionRepository(tx).Create(txn); err != nil {
			return err
		}

		granted, err := badges.EvaluateWithin(tx, account, now)
		if err != nil {
			return err
		}

		result = DepositResult{
			TransactionID: txn.ID,
			Balance:       account.Points,
			Level:         account.Level,
			StreakDays:    account.StreakDays,
			Impact:        impact,
			BadgesGranted: granted,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) || errors.Is(err, models.ErrAccountInactive) {
			return nil, err
		}
		s.log.Error().Err(err).Str("card_uid", in.CardUID).Msg("Deposit transaction failed")
		return nil, fmt.Errorf("%w: failed to record deposit: %v", models.ErrInternal, err)
	}

	prommetrics.RecordDeposit(in.ObjectType, in.Points, impact.WeightKG)
	for _, badge := range result.BadgesGranted {
		prommetrics.RecordBadgeAwarded(badge.Name)
	}
	s.invalidateDerived(ctx)

	s.log.Info().
		Str("card_uid", in.CardUID).
		Uint("transaction_id", result.TransactionID).
		Int("points", in.Points).
		Str("object_type", in.ObjectType).
		Int("balance", result.Balance).
		Int("streak_days", result.StreakDays).
		Int("badges_granted", len(result.BadgesGranted)).
		Msg("Deposit recorded")

	return &result, nil
}

// GetHistory retrieves the most recent transactions for an account.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetHistory(ctx context.Context, accountID uint, limit int) ([]models.Transaction, error) {
	if _, err := repository.NewAccountRepository(s.db).GetByID(accountID); err != nil {
		return nil, err
	}
	return repository.NewTransactionRepository(s.db).ListByAccount(accountID, limit)
}

// GetRecent retrieves the most recent transactions systemwide.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetRecent(ctx context.Context, limit int) ([]models.Transaction, error) {
	return repository.NewTransactionRepository(s.db).ListRecent(limit)
}

// invalidateDerived drops cached read models a deposit makes stale.
// Cache failures are logged, never surfaced: the deposit has committed.
func (s *Service) invalidateDerived(ctx context.Context) {
	if s.cache == nil {
		return
	}
	err := s.cache.Delete(ctx, cache.KeyLeaderboard, cache.KeySystemStats, cache.KeyImpact)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate cached read models")
	}
}
