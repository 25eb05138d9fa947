package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecocampus/rvm-backend/internal/models"
)

// AccountRepository handles account-related database operations.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account.
func (r *AccountRepository) Create(account *models.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by id %d: %w", id, err)
	}
	return &account, nil
}

// GetByCardUID retrieves an account by its card tag. The tag is
// normalized the way the machine sends it. Inactive accounts are
// returned so callers can distinguish not-found from deactivated.
func (r *AccountRepository) GetByCardUID(uid string) (*models.Account, error) {
	uid = models.NormalizeCardUID(uid)
	var account models.Account
	if err := r.db.Where("card_uid = ?", uid).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by card uid %s: %w", uid, err)
	}
	return &account, nil
}

// GetByCardUIDForUpdate is GetByCardUID with a row lock, so concurrent
// deposits for the same account serialize on the account row. Must run
// inside a transaction.
func (r *AccountRepository) GetByCardUIDForUpdate(uid string) (*models.Account, error) {
	uid = models.NormalizeCardUID(uid)
	var account models.Account
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("card_uid = ?", uid).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by card uid %s: %w", uid, err)
	}
	return &account, nil
}

// GetByEmail retrieves an account by email.
func (r *AccountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by email %s: %w", email, err)
	}
	return &account, nil
}

// Update updates an account.
func (r *AccountRepository) Update(account *models.Account) error {
	if err := r.db.Save(account).Error; err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// Deactivate soft-deactivates an account. History rows keep referencing
// it; nothing is ever hard-deleted.
func (r *AccountRepository) Deactivate(id uint) error {
	res := r.db.Model(&models.Account{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate account %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// DebitPoints atomically debits an account balance, refusing to go
// below zero. Returns false when the balance cannot cover the amount.
// The derived level column is kept in step in the same statement.
func (r *AccountRepository) DebitPoints(id uint, amount int) (bool, error) {
	res := r.db.Model(&models.Account{}).
		Where("id = ? AND points >= ?", id, amount).
		Updates(map[string]interface{}{
			"points": gorm.Expr("points - ?", amount),
			"level":  gorm.Expr("(points - ?) / ? + 1", amount, models.PointsPerLevel),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to debit account %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreditPoints atomically credits an account balance and recomputes the
// level column from the new total.
func (r *AccountRepository) CreditPoints(id uint, amount int) error {
	res := r.db.Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"points": gorm.Expr("points + ?", amount),
			"level":  gorm.Expr("(points + ?) / ? + 1", amount, models.PointsPerLevel),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to credit account %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// List retrieves accounts, optionally restricted to active ones,
// ordered by point balance descending.
func (r *AccountRepository) List(activeOnly bool) ([]models.Account, error) {
	query := r.db.Model(&models.Account{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var accounts []models.Account
	if err := query.Order("points DESC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Ranking retrieves the top active accounts by point balance.
func (r *AccountRepository) Ranking(limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Where("active = ?", true).
		Order("points DESC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get account ranking: %w", err)
	}
	return accounts, nil
}

// CountActive returns the number of active accounts.
func (r *AccountRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Where("active = ?", true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// SumPoints returns the total points currently held across active accounts.
func (r *AccountRepository) SumPoints() (int64, error) {
	var total int64
	err := r.db.Model(&models.Account{}).
		Where("active = ?", true).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum account points: %w", err)
	}
	return total, nil
}
