package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ecocampus/rvm-backend/internal/models"
)

// RewardRepository handles reward-catalog database operations.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Create creates a new catalog entry.
func (r *RewardRepository) Create(reward *models.Reward) error {
	if err := r.db.Create(reward).Error; err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	return nil
}

// GetByID retrieves a reward by ID.
func (r *RewardRepository) GetByID(id uint) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.First(&reward, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRewardNotFound
		}
		return nil, fmt.Errorf("failed to get reward by id %d: %w", id, err)
	}
	return &reward, nil
}

// List retrieves catalog entries ordered by price, cheapest first.
func (r *RewardRepository) List(activeOnly bool) ([]models.Reward, error) {
	query := r.db.Model(&models.Reward{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rewards []models.Reward
	if err := query.Order("point_cost ASC").Find(&rewards).Error; err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

// Update updates a catalog entry.
func (r *RewardRepository) Update(reward *models.Reward) error {
	if err := r.db.Save(reward).Error; err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	return nil
}

// SetActive toggles a catalog entry's active flag.
func (r *RewardRepository) SetActive(id uint, active bool) error {
	res := r.db.Model(&models.Reward{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("failed to set reward %d active=%v: %w", id, active, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrRewardNotFound
	}
	return nil
}

// DecrementStock takes one unit of stock, refusing to go below zero.
// The conditional update serializes concurrent redemptions on the last
// unit; returns false when no stock was left to take.
func (r *RewardRepository) DecrementStock(id uint) (bool, error) {
	res := r.db.Model(&models.Reward{}).
		Where("id = ? AND stock > 0", id).
		Update("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("failed to decrement stock for reward %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// IncrementStock returns one unit of stock, used by redemption reversal.
func (r *RewardRepository) IncrementStock(id uint) error {
	res := r.db.Model(&models.Reward{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock for reward %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrRewardNotFound
	}
	return nil
}
