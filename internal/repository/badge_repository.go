package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ecocampus/rvm-backend/internal/models"
)

// BadgeRepository handles badge-related database operations.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Create creates a new badge definition.
func (r *BadgeRepository) Create(badge *models.Badge) error {
	if err := r.db.Create(badge).Error; err != nil {
		return fmt.Errorf("failed to create badge: %w", err)
	}
	return nil
}

// GetByID retrieves a badge by its ID.
func (r *BadgeRepository) GetByID(id uint) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.First(&badge, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get badge by id %d: %w", id, err)
	}
	return &badge, nil
}

// GetByName retrieves a badge by its name.
func (r *BadgeRepository) GetByName(name string) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.Where("name = ?", name).First(&badge).Error; err != nil {
		return nil, fmt.Errorf("failed to get badge by name %s: %w", name, err)
	}
	return &badge, nil
}

// GetAll retrieves all badge definitions.
func (r *BadgeRepository) GetAll() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.Order("threshold ASC").Find(&badges).Error
	return badges, err
}

// ListActive retrieves badge definitions eligible for granting.
func (r *BadgeRepository) ListActive() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.Where("active = ?", true).Order("threshold ASC").Find(&badges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active badges: %w", err)
	}
	return badges, nil
}

// HasAccountBadge checks if an account has already earned a badge.
func (r *BadgeRepository) HasAccountBadge(accountID, badgeID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.AccountBadge{}).
		Where("account_id = ? AND badge_id = ?", accountID, badgeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantedBadgeIDs returns the set of badge IDs already granted to an account.
func (r *BadgeRepository) GrantedBadgeIDs(accountID uint) (map[uint]bool, error) {
	var grants []models.AccountBadge
	err := r.db.Where("account_id = ?", accountID).Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load grants for account %d: %w", accountID, err)
	}
	ids := make(map[uint]bool, len(grants))
	for _, g := range grants {
		ids[g.BadgeID] = true
	}
	return ids, nil
}

// Grant awards a badge to an account exactly once. A concurrent or
// repeated grant of the same pair is absorbed: the unique index on
// (account_id, badge_id) rejects the duplicate and Grant reports it as
// already granted rather than an error.
func (r *BadgeRepository) Grant(accountID, badgeID uint, earnedAt time.Time) (bool, error) {
	exists, err := r.HasAccountBadge(accountID, badgeID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	grant := &models.AccountBadge{
		AccountID: accountID,
		BadgeID:   badgeID,
		EarnedAt:  earnedAt,
	}
	if err := r.db.Create(grant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to grant badge %d to account %d: %w", badgeID, accountID, err)
	}
	return true, nil
}

// ListByAccount retrieves all badges earned by an account with the
// badge definition preloaded, newest grant first.
func (r *BadgeRepository) ListByAccount(accountID uint) ([]models.AccountBadge, error) {
	var grants []models.AccountBadge
	err := r.db.Where("account_id = ?", accountID).
		Preload("Badge").
		Order("earned_at DESC").
		Find(&grants).Error
	return grants, err
}

// CountByAccount returns the number of badges an account has earned.
func (r *BadgeRepository) CountByAccount(accountID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.AccountBadge{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

// HolderCount returns the number of accounts holding a badge.
func (r *BadgeRepository) HolderCount(badgeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.AccountBadge{}).
		Where("badge_id = ?", badgeID).
		Count(&count).Error
	return count, err
}
