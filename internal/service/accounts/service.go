// Package accounts manages participant registration, profiles and card
// linking. Point balances are never mutated here; that is the ledger's
// and the redemption engine's job.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Service handles account lifecycle operations.
type Service struct {
	db            *repository.DB
	welcomePoints int
	log           *logger.Logger
}

// NewService creates a new accounts service. welcomePoints is credited
// once at registration.
func NewService(db *repository.DB, welcomePoints int, log *logger.Logger) *Service {
	return &Service{db: db, welcomePoints: welcomePoints, log: log}
}

// RegisterInput describes a registration request. CardUID is optional;
// accounts registered without a physical card get a generated virtual
// UID plus a keypad access code.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	CardUID   string
}

// Register creates a new active account at level 1 with the configured
// welcome balance.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", models.ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", models.ErrInvalidInput)
	}

	account := &models.Account{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Points:    s.welcomePoints,
		Level:     models.LevelForPoints(s.welcomePoints),
		Active:    true,
	}

	if in.CardUID != "" {
		if !account.LinkCard(in.CardUID) {
			return nil, fmt.Errorf("%w: card uid must be at least 8 characters", models.ErrInvalidInput)
		}
	} else {
		account.CardUID = models.GenerateVirtualCardUID()
		account.VirtualCode = models.GenerateVirtualCode()
	}

	accountRepo := repository.NewAccountRepository(s.db)
	if _, err := accountRepo.GetByEmail(account.Email); err == nil {
		return nil, models.ErrDuplicateAccount
	} else if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: failed to check email: %v", models.ErrInternal, err)
	}
	if _, err := accountRepo.GetByCardUID(account.CardUID); err == nil {
		return nil, models.ErrDuplicateAccount
	} else if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: failed to check card uid: %v", models.ErrInternal, err)
	}

	if err := accountRepo.Create(account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.ErrDuplicateAccount
		}
		s.log.Error().Err(err).Str("email", in.Email).Msg("Account creation failed")
		return nil, fmt.Errorf("%w: failed to create account: %v", models.ErrInternal, err)
	}

	prommetrics.RecordAccountCreated()
	s.log.Info().
		Uint("account_id", account.ID).
		Str("email", account.Email).
		Bool("physical_card", account.HasPhysicalCard()).
		Int("welcome_points", s.welcomePoints).
		Msg("Account registered")

	return account, nil
}

// GetByCard resolves an account by its card UID. Inactive accounts are
// returned with ErrAccountInactive so the machine can show a distinct
// message.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetByCard(ctx context.Context, cardUID string) (*models.Account, error) {
	account, err := repository.NewAccountRepository(s.db).GetByCardUID(cardUID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, models.ErrAccountInactive
	}
	return account, nil
}

// GetByID retrieves an account by its primary key.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	return repository.NewAccountRepository(s.db).GetByID(id)
}

// LinkCard replaces an account's virtual card UID with a physical one.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) LinkCard(ctx context.Context, accountID uint, cardUID string) (*models.Account, error) {
	accountRepo := repository.NewAccountRepository(s.db)

	account, err := accountRepo.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	if !account.LinkCard(cardUID) {
		return nil, fmt.Errorf("%w: card uid must be at least 8 characters", models.ErrInvalidInput)
	}

	if err := accountRepo.Update(account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("%w: failed to link card: %v", models.ErrInternal, err)
	}

	s.log.Info().Uint("account_id", accountID).Msg("Physical card linked")
	return account, nil
}

// Deactivate soft-disables an account. History stays; future deposits
// and redemptions are refused.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Deactivate(ctx context.Context, accountID uint) error {
	if err := repository.NewAccountRepository(s.db).Deactivate(accountID); err != nil {
		return err
	}
	s.log.Info().Uint("account_id", accountID).Msg("Account deactivated")
	return nil
}
