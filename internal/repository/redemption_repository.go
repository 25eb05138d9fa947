package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ecocampus/rvm-backend/internal/models"
)

// RedemptionRepository handles redemption database operations. The core
// record is append-only; only the status column is ever updated.
type RedemptionRepository struct {
	db *DB
}

// NewRedemptionRepository creates a new redemption repository.
func NewRedemptionRepository(db *DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// Create creates a new redemption record.
func (r *RedemptionRepository) Create(redemption *models.Redemption) error {
	if err := r.db.Create(redemption).Error; err != nil {
		return fmt.Errorf("failed to create redemption: %w", err)
	}
	return nil
}

// GetByID retrieves a redemption by ID.
func (r *RedemptionRepository) GetByID(id uint) (*models.Redemption, error) {
	var redemption models.Redemption
	if err := r.db.First(&redemption, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("failed to get redemption by id %d: %w", id, err)
	}
	return &redemption, nil
}

// UpdateStatus persists a status transition.
func (r *RedemptionRepository) UpdateStatus(id uint, status string) error {
	res := r.db.Model(&models.Redemption{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update redemption %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrRedemptionNotFound
	}
	return nil
}

// ListByAccount retrieves an account's redemptions, newest first, with
// the reward preloaded for display.
func (r *RedemptionRepository) ListByAccount(accountID uint) ([]models.Redemption, error) {
	var redemptions []models.Redemption
	err := r.db.Where("account_id = ?", accountID).
		Preload("Reward").
		Order("created_at DESC").
		Find(&redemptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions for account %d: %w", accountID, err)
	}
	return redemptions, nil
}

// CountByAccount returns the number of redemptions for an account.
func (r *RedemptionRepository) CountByAccount(accountID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Redemption{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions for account %d: %w", accountID, err)
	}
	return count, nil
}

// VoucherCodeExists reports whether a voucher code is already taken.
// Used by the collision-retry loop when issuing new codes; the unique
// index on voucher_code is the backstop.
func (r *RedemptionRepository) VoucherCodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Redemption{}).
		Where("voucher_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check voucher code: %w", err)
	}
	return count > 0, nil
}
