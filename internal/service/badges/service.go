// Package badges provides badge evaluation and management services.
package badges

import (
	"context"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Service handles badge evaluation and lookups outside the ledger flow.
type Service struct {
	db  *repository.DB
	log *logger.Logger
}

// NewService creates a new badge service.
func NewService(db *repository.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// EvaluateAccount evaluates all badges for one account and returns the
// newly earned ones. The grants commit as a single transaction.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) EvaluateAccount(ctx context.Context, accountID uint) ([]models.Badge, error) {
	s.log.Debug().Uint("account_id", accountID).Msg("Evaluating badges for account")

	var newlyEarned []models.Badge
	err := s.db.Transaction(func(tx *repository.DB) error {
		account, err := repository.NewAccountRepository(tx).GetByID(accountID)
		if err != nil {
			return err
		}

		newlyEarned, err = EvaluateWithin(tx, account, time.Now().UTC())
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: badge evaluation failed: %v", models.ErrInternal, err)
	}

	for _, badge := range newlyEarned {
		prommetrics.RecordBadgeAwarded(badge.Name)
		s.log.Info().
			Uint("account_id", accountID).
			Str("badge", badge.Name).
			Msg("Badge awarded")
	}

	return newlyEarned, nil
}

// GetAccountBadges retrieves all badges earned by an account.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetAccountBadges(ctx context.Context, accountID uint) ([]models.AccountBadge, error) {
	return repository.NewBadgeRepository(s.db).ListByAccount(accountID)
}

// GetCatalog retrieves all badge definitions.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetCatalog(ctx context.Context) ([]models.Badge, error) {
	return repository.NewBadgeRepository(s.db).GetAll()
}

// GetHolderCount retrieves the number of accounts holding a badge.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetHolderCount(ctx context.Context, badgeID uint) (int64, error) {
	return repository.NewBadgeRepository(s.db).HolderCount(badgeID)
}
