// Package seed loads reference data (badge definitions and a starter
// reward catalog) at boot. Seeding is idempotent by name: rows that
// already exist are left untouched.
package seed

import (
	"fmt"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Predefined achievement ladder. Thresholds cover first contact through
// long-term habit so every account always has a next badge in reach.
var predefinedBadges = []models.Badge{
	{Name: "Primer Paso", Description: "Realiza tu primer reciclaje", Icon: "🌱", Color: "#4CAF50", ConditionType: models.BadgeConditionRecycleCount, Threshold: 1, Active: true},
	{Name: "Reciclador Novato", Description: "Recicla 10 objetos", Icon: "♻️", Color: "#2196F3", ConditionType: models.BadgeConditionRecycleCount, Threshold: 10, Active: true},
	{Name: "Reciclador Experto", Description: "Recicla 50 objetos", Icon: "🌟", Color: "#FF9800", ConditionType: models.BadgeConditionRecycleCount, Threshold: 50, Active: true},
	{Name: "Reciclador Maestro", Description: "Recicla 100 objetos", Icon: "🏆", Color: "#FFD700", ConditionType: models.BadgeConditionRecycleCount, Threshold: 100, Active: true},
	{Name: "Centenario", Description: "Alcanza 100 puntos", Icon: "💯", Color: "#9C27B0", ConditionType: models.BadgeConditionPointTotal, Threshold: 100, Active: true},
	{Name: "Mil Puntos", Description: "Alcanza 1000 puntos", Icon: "💎", Color: "#00BCD4", ConditionType: models.BadgeConditionPointTotal, Threshold: 1000, Active: true},
	{Name: "Constante", Description: "Racha de 7 días reciclando", Icon: "🔥", Color: "#F44336", ConditionType: models.BadgeConditionStreakLength, Threshold: 7, Active: true},
	{Name: "Imparable", Description: "Racha de 30 días reciclando", Icon: "⚡", Color: "#E91E63", ConditionType: models.BadgeConditionStreakLength, Threshold: 30, Active: true},
	{Name: "Nivel 5", Description: "Alcanza el nivel 5", Icon: "⭐", Color: "#673AB7", ConditionType: models.BadgeConditionLevel, Threshold: 5, Active: true},
	{Name: "Nivel 10", Description: "Alcanza el nivel 10", Icon: "🌙", Color: "#3F51B5", ConditionType: models.BadgeConditionLevel, Threshold: 10, Active: true},
}

var starterRewards = []models.Reward{
	{Name: "Café Gratis", Description: "Un café de tu elección en la cafetería", PointCost: 50, Stock: 20, Category: "comida", Active: true},
	{Name: "Descuento 10% Librería", Description: "10% de descuento en librería", PointCost: 100, Stock: 50, Category: "descuentos", Active: true},
	{Name: "Almuerzo Gratis", Description: "Un almuerzo en el comedor", PointCost: 150, Stock: 10, Category: "comida", Active: true},
	{Name: "Entrada Cine", Description: "Una entrada de cine", PointCost: 200, Stock: 15, Category: "entretenimiento", Active: true},
	{Name: "Descuento 20% Tienda", Description: "20% en cualquier compra", PointCost: 250, Stock: 25, Category: "descuentos", Active: true},
	{Name: "Botella Ecológica", Description: "Botella reutilizable", PointCost: 300, Stock: 30, Category: "productos", Active: true},
	{Name: "Donación ONG Ambiental", Description: "Tus puntos donan a causa ambiental", PointCost: 500, Stock: 999, Category: "donacion", Active: true},
}

// Badges inserts any predefined badge definitions not already present.
func Badges(db *repository.DB, log *logger.Logger) error {
	badgeRepo := repository.NewBadgeRepository(db)

	created := 0
	for _, badge := range predefinedBadges {
		_, err := badgeRepo.GetByName(badge.Name)
		if err == nil {
			continue
		}
		b := badge
		if err := badgeRepo.Create(&b); err != nil {
			return fmt.Errorf("failed to seed badge %q: %w", badge.Name, err)
		}
		created++
	}

	log.Info().Int("created", created).Int("total", len(predefinedBadges)).Msg("Badge definitions seeded")
	return nil
}

// Rewards inserts the starter catalog when it is empty. An installation
// that already manages its own catalog is never touched.
func Rewards(db *repository.DB, log *logger.Logger) error {
	rewardRepo := repository.NewRewardRepository(db)

	existing, err := rewardRepo.List(false)
	if err != nil {
		return fmt.Errorf("failed to inspect reward catalog: %w", err)
	}
	if len(existing) > 0 {
		log.Debug().Int("existing", len(existing)).Msg("Reward catalog already populated, skipping seed")
		return nil
	}

	for _, reward := range starterRewards {
		r := reward
		if err := rewardRepo.Create(&r); err != nil {
			return fmt.Errorf("failed to seed reward %q: %w", reward.Name, err)
		}
	}

	log.Info().Int("created", len(starterRewards)).Msg("Starter reward catalog seeded")
	return nil
}
