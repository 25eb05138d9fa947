package badges

import (
	"fmt"
	"time"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
)

// Qualifies tests a badge's unlock condition against current account
// state. recycleCount is the account's total transaction count, supplied
// by the caller so evaluation can run inside the ledger's transaction.
// Unrecognized condition types never qualify; incomplete badge metadata
// must not block the reward flow.
func Qualifies(badge *models.Badge, account *models.Account, recycleCount int64) bool {
	switch badge.ConditionType {
	case models.BadgeConditionRecycleCount:
		return recycleCount >= int64(badge.Threshold)
	case models.BadgeConditionPointTotal:
		return account.Points >= badge.Threshold
	case models.BadgeConditionStreakLength:
		return account.StreakDays >= badge.Threshold
	case models.BadgeConditionLevel:
		return account.Level >= badge.Threshold
	default:
		return false
	}
}

// EvaluateWithin scans all active badge definitions against the account
// and grants any newly satisfied ones, using repositories scoped to tx.
// The ledger engine calls this inside its own transaction so point award
// and badge grants commit as one unit; Service.EvaluateAccount wraps it
// in a transaction of its own for standalone runs.
//
// Idempotent: already-granted pairs are skipped, and the unique
// (account, badge) index absorbs races, so a repeated call with
// unchanged state grants nothing.
func EvaluateWithin(tx *repository.DB, account *models.Account, now time.Time) ([]models.Badge, error) {
	badgeRepo := repository.NewBadgeRepository(tx)
	txnRepo := repository.NewTransactionRepository(tx)

	defs, err := badgeRepo.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}

	granted, err := badgeRepo.GrantedBadgeIDs(account.ID)
	if err != nil {
		return nil, err
	}

	recycleCount, err := txnRepo.CountByAccount(account.ID)
	if err != nil {
		return nil, err
	}

	var newlyEarned []models.Badge
	for _, badge := range defs {
		if granted[badge.ID] {
			continue
		}
		if !Qualifies(&badge, account, recycleCount) {
			continue
		}
		created, err := badgeRepo.Grant(account.ID, badge.ID, now)
		if err != nil {
			return nil, err
		}
		if created {
			newlyEarned = append(newlyEarned, badge)
		}
	}

	return newlyEarned, nil
}
