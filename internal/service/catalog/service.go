// Package catalog manages reward definitions. The redemption engine only
// reads price, stock and the active flag from here at redemption time.
package catalog

import (
	"context"
	"fmt"
	"strings"

	prommetrics "github.com/ecocampus/rvm-backend/internal/metrics"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Service handles reward catalog management.
type Service struct {
	db  *repository.DB
	log *logger.Logger
}

// NewService creates a new catalog service.
func NewService(db *repository.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// CreateInput describes a new catalog entry.
type CreateInput struct {
	Name        string
	Description string
	PointCost   int
	Stock       int
	Category    string
	ImageURL    string
}

// Create adds a reward to the catalog.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Reward, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: reward name is required", models.ErrInvalidInput)
	}
	if in.PointCost <= 0 {
		return nil, fmt.Errorf("%w: point cost must be positive", models.ErrInvalidInput)
	}
	if in.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", models.ErrInvalidInput)
	}

	category := in.Category
	if category == "" {
		category = "general"
	}
	reward := &models.Reward{
		Name:        in.Name,
		Description: in.Description,
		PointCost:   in.PointCost,
		Stock:       in.Stock,
		Category:    category,
		ImageURL:    in.ImageURL,
		Active:      true,
	}
	if err := repository.NewRewardRepository(s.db).Create(reward); err != nil {
		return nil, fmt.Errorf("%w: failed to create reward: %v", models.ErrInternal, err)
	}

	prommetrics.SetRewardStock(reward.Name, reward.Stock)
	s.log.Info().
		Uint("reward_id", reward.ID).
		Str("name", reward.Name).
		Int("point_cost", reward.PointCost).
		Int("stock", reward.Stock).
		Msg("Reward created")

	return reward, nil
}

// List retrieves catalog entries ordered by price ascending.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.Reward, error) {
	return repository.NewRewardRepository(s.db).List(activeOnly)
}

// Get retrieves one reward.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Get(ctx context.Context, id uint) (*models.Reward, error) {
	return repository.NewRewardRepository(s.db).GetByID(id)
}

// SetActive toggles a reward's availability without touching its stock.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) SetActive(ctx context.Context, id uint, active bool) error {
	if err := repository.NewRewardRepository(s.db).SetActive(id, active); err != nil {
		return err
	}
	s.log.Info().Uint("reward_id", id).Bool("active", active).Msg("Reward availability changed")
	return nil
}
