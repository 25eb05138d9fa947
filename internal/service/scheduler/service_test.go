package scheduler

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecocampus/rvm-backend/internal/config"
	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/internal/service/badges"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		time    string
		want    string
		wantErr bool
	}{
		{
			name:    "daily at half past three",
			time:    "03:30",
			want:    "30 3 * * *",
			wantErr: false,
		},
		{
			name:    "daily at midnight",
			time:    "00:00",
			want:    "0 0 * * *",
			wantErr: false,
		},
		{
			name:    "invalid format no colon",
			time:    "0330",
			want:    "",
			wantErr: true,
		},
		{
			name:    "invalid hour",
			time:    "25:00",
			want:    "",
			wantErr: true,
		},
		{
			name:    "invalid minute",
			time:    "03:60",
			want:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Scheduler: config.SchedulerConfig{Time: tt.time},
			}

			s := &Service{config: cfg}

			got, err := s.buildCronExpression()

			if (err != nil) != tt.wantErr {
				t.Errorf("buildCronExpression() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("buildCronExpression() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStart_Disabled(t *testing.T) {
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{Enabled: false},
	}

	s := NewService(cfg, nil, nil, logger.Nop())

	if err := s.Start(); err != nil {
		t.Errorf("Start() with disabled scheduler returned error: %v", err)
	}
	if s.cron != nil {
		t.Error("Expected no cron instance when scheduler is disabled")
	}
}

func TestStart_InvalidTimezone(t *testing.T) {
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{
			Enabled:  true,
			Time:     "03:30",
			Timezone: "Mars/Olympus",
		},
	}

	s := NewService(cfg, nil, nil, logger.Nop())

	if err := s.Start(); err == nil {
		t.Error("Expected error for invalid timezone")
	}
}

func setupTestDB(t *testing.T) *repository.DB {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.Reward{},
		&models.Redemption{},
		&models.Badge{},
		&models.AccountBadge{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		_ = sqlDB.Close()
	})

	return &repository.DB{DB: gormDB}
}

func TestSweepBadges_GrantsMissedBadges(t *testing.T) {
	db := setupTestDB(t)
	log := logger.Nop()

	badge := &models.Badge{Name: "Centenario", ConditionType: models.BadgeConditionPointTotal, Threshold: 100, Active: true}
	if err := db.Create(badge).Error; err != nil {
		t.Fatalf("Failed to create badge: %v", err)
	}

	// Account over the threshold but without the badge, as if the inline
	// evaluation never ran.
	now := time.Now().UTC()
	account := &models.Account{
		CardUID:        "04A1B2C3D4",
		FirstName:      "Ana",
		LastName:       "Reyes",
		Email:          "ana@uni.edu",
		Points:         150,
		Level:          2,
		Active:         true,
		LastActivityAt: &now,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	stale := now.Add(-72 * time.Hour)
	dormant := &models.Account{
		CardUID:        "04FFFFFFFF",
		FirstName:      "Luis",
		LastName:       "Soto",
		Email:          "luis@uni.edu",
		Points:         200,
		Level:          3,
		Active:         true,
		LastActivityAt: &stale,
	}
	if err := db.Create(dormant).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	s := NewService(&config.Config{}, db, badges.NewService(db, log), log)

	swept, err := s.sweepBadges(context.Background())
	if err != nil {
		t.Fatalf("sweepBadges returned error: %v", err)
	}
	if swept != 1 {
		t.Errorf("Expected 1 account swept, got %d", swept)
	}

	granted, err := repository.NewBadgeRepository(db).HasAccountBadge(account.ID, badge.ID)
	if err != nil {
		t.Fatalf("HasAccountBadge returned error: %v", err)
	}
	if !granted {
		t.Error("Expected sweep to grant the missed badge")
	}

	grantedDormant, err := repository.NewBadgeRepository(db).HasAccountBadge(dormant.ID, badge.ID)
	if err != nil {
		t.Fatalf("HasAccountBadge returned error: %v", err)
	}
	if grantedDormant {
		t.Error("Expected dormant account to be skipped by the sweep")
	}
}

func TestRefreshGauges(t *testing.T) {
	db := setupTestDB(t)
	log := logger.Nop()

	account := &models.Account{CardUID: "04A1B2C3D4", FirstName: "Ana", LastName: "Reyes", Email: "ana@uni.edu", Active: true}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	reward := &models.Reward{Name: "Café Gratis", PointCost: 50, Stock: 20, Active: true}
	if err := db.Create(reward).Error; err != nil {
		t.Fatalf("Failed to create reward: %v", err)
	}

	s := NewService(&config.Config{}, db, badges.NewService(db, log), log)

	if err := s.refreshGauges(); err != nil {
		t.Errorf("refreshGauges returned error: %v", err)
	}
}
