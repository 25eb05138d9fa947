// Package leaderboard provides point-ranking and per-account statistics
// read models over the ledger's stores.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecocampus/rvm-backend/internal/cache"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// AccountRepository interface for account ranking operations.
type AccountRepository interface {
	GetByID(id uint) (*models.Account, error)
	Ranking(limit int) ([]models.Account, error)
}

// BadgeRepository interface for badge count lookups.
type BadgeRepository interface {
	CountByAccount(accountID uint) (int64, error)
}

// TransactionRepository interface for deposit statistics.
type TransactionRepository interface {
	CountByAccount(accountID uint) (int64, error)
	SumImpactByAccount(accountID uint) (*repository.ImpactTotals, error)
}

// RedemptionRepository interface for redemption statistics.
type RedemptionRepository interface {
	CountByAccount(accountID uint) (int64, error)
}

// Entry represents a single row in the points leaderboard.
type Entry struct {
	Rank       int    `json:"rank"`
	AccountID  uint   `json:"account_id"`
	Name       string `json:"name"`
	Points     int    `json:"points"`
	Level      int    `json:"level"`
	StreakDays int    `json:"streak_days"`
	BadgeCount int    `json:"badge_count"`
}

// Service handles leaderboard generation and account statistics.
type Service struct {
	accountRepo    AccountRepository
	badgeRepo      BadgeRepository
	txnRepo        TransactionRepository
	redemptionRepo RedemptionRepository
	cache          cache.Cache
	cacheTTL       time.Duration
	log            *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository
// types. cache may be nil when caching is disabled.
func NewService(db *repository.DB, c cache.Cache, cacheTTL time.Duration, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(
		repository.NewAccountRepository(db),
		repository.NewBadgeRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewRedemptionRepository(db),
		c,
		cacheTTL,
		log,
	)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	accountRepo AccountRepository,
	badgeRepo BadgeRepository,
	txnRepo TransactionRepository,
	redemptionRepo RedemptionRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		accountRepo:    accountRepo,
		badgeRepo:      badgeRepo,
		txnRepo:        txnRepo,
		redemptionRepo: redemptionRepo,
		cache:          c,
		cacheTTL:       cacheTTL,
		log:            log,
	}
}

// cachedEntries is how many ranks the cached copy holds. Requests up to
// this size are served by slicing it; larger ones go to the database.
const cachedEntries = 100

// GetLeaderboard returns active accounts ranked by points. Results up to
// the cached depth are served from the cache when a fresh copy exists;
// the ledger and redemption engines invalidate it on every balance change.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	if limit <= cachedEntries {
		if cached, ok := s.fromCache(ctx); ok {
			if len(cached) > limit {
				cached = cached[:limit]
			}
			return cached, nil
		}
	}

	fetch := limit
	if fetch < cachedEntries {
		fetch = cachedEntries
	}
	accounts, err := s.accountRepo.Ranking(fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to rank accounts: %w", err)
	}

	entries := make([]Entry, 0, len(accounts))
	for i, account := range accounts {
		badgeCount, err := s.badgeRepo.CountByAccount(account.ID)
		if err != nil {
			s.log.Warn().Err(err).Uint("account_id", account.ID).Msg("Failed to get badge count")
			badgeCount = 0
		}

		entries = append(entries, Entry{
			Rank:       i + 1,
			AccountID:  account.ID,
			Name:       account.FullName(),
			Points:     account.Points,
			Level:      account.Level,
			StreakDays: account.StreakDays,
			BadgeCount: int(badgeCount),
		})
	}

	s.toCache(ctx, entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Service) fromCache(ctx context.Context) ([]Entry, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, found, err := s.cache.Get(ctx, cache.KeyLeaderboard)
	if err != nil {
		s.log.Warn().Err(err).Msg("Leaderboard cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn().Err(err).Msg("Discarding malformed leaderboard cache entry")
		return nil, false
	}
	return entries, true
}

func (s *Service) toCache(ctx context.Context, entries []Entry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.KeyLeaderboard, string(raw), s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("Leaderboard cache write failed")
	}
}
