package repository

import (
	"fmt"

	"github.com/ecocampus/rvm-backend/internal/models"
)

// TransactionRepository handles recycling-event database operations.
// Transactions are append-only; there are no update or delete methods.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a new recycling transaction record.
func (r *TransactionRepository) Create(txn *models.Transaction) error {
	if err := r.db.Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListByAccount retrieves the most recent transactions for an account.
func (r *TransactionRepository) ListByAccount(accountID uint, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for account %d: %w", accountID, err)
	}
	return txns, nil
}

// ListRecent retrieves the most recent transactions systemwide.
func (r *TransactionRepository) ListRecent(limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	return txns, nil
}

// CountByAccount returns the number of recycling events for an account.
func (r *TransactionRepository) CountByAccount(accountID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions for account %d: %w", accountID, err)
	}
	return count, nil
}

// Count returns the total number of recycling events in the system.
func (r *TransactionRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Transaction{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ImpactTotals holds summed environmental impact over a set of transactions.
type ImpactTotals struct {
	WeightKG     float64
	CO2AvoidedKG float64
	Deposits     int64
}

// SumImpact sums environmental impact across all transactions.
func (r *TransactionRepository) SumImpact() (*ImpactTotals, error) {
	return r.sumImpact(0)
}

// SumImpactByAccount sums environmental impact for one account.
func (r *TransactionRepository) SumImpactByAccount(accountID uint) (*ImpactTotals, error) {
	return r.sumImpact(accountID)
}

func (r *TransactionRepository) sumImpact(accountID uint) (*ImpactTotals, error) {
	query := r.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(weight_kg), 0) AS weight_kg, COALESCE(SUM(co2_avoided_kg), 0) AS co2_avoided_kg, COUNT(*) AS deposits")
	if accountID != 0 {
		query = query.Where("account_id = ?", accountID)
	}

	var totals ImpactTotals
	if err := query.Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to sum impact: %w", err)
	}
	return &totals, nil
}
