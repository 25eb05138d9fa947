package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/repository"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

func setupTestDB(t *testing.T) (*repository.DB, func()) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// Auto-migrate all models
	err = gormDB.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.Reward{},
		&models.Redemption{},
		&models.Badge{},
		&models.AccountBadge{},
	)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := gormDB.DB()
		_ = sqlDB.Close()
	}

	return &repository.DB{DB: gormDB}, cleanup
}

func newTestService(db *repository.DB, now time.Time) *Service {
	return NewServiceWithClock(db, nil, fixedClock{t: now}, logger.Nop())
}

func createAccount(t *testing.T, db *repository.DB, account *models.Account) *models.Account {
	t.Helper()
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestRecordRecycling_AwardsPointsAndAppendsTransaction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	service := newTestService(db, now)

	createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Active:    true,
	})

	result, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04A1B2C3D4",
		Points:     15,
		ObjectType: "plastico",
	})
	require.NoError(t, err)

	assert.Equal(t, 15, result.Balance)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, 1, result.StreakDays)
	assert.InDelta(t, 0.025, result.Impact.WeightKG, 1e-9)
	assert.InDelta(t, 0.05, result.Impact.CO2AvoidedKG, 1e-9)
	assert.NotZero(t, result.TransactionID)

	// Exactly one transaction row exists
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Account state persisted
	var account models.Account
	require.NoError(t, db.First(&account, "card_uid = ?", "04A1B2C3D4").Error)
	assert.Equal(t, 15, account.Points)
	assert.Equal(t, 1, account.Level)
	require.NotNil(t, account.LastActivityAt)
	assert.True(t, account.LastActivityAt.Equal(now))
}

func TestRecordRecycling_EveryDepositCreditsExactly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	service := newTestService(db, now)

	createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Active:    true,
	})

	expected := 0
	for _, points := range []int{10, 15, 25} {
		result, err := service.RecordRecycling(context.Background(), DepositInput{
			CardUID:    "04A1B2C3D4",
			Points:     points,
			ObjectType: "lata",
		})
		require.NoError(t, err)
		expected += points
		assert.Equal(t, expected, result.Balance)
	}

	// Every credit landed: one transaction row per deposit, no lost update
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	var account models.Account
	require.NoError(t, db.First(&account, "card_uid = ?", "04A1B2C3D4").Error)
	assert.Equal(t, 50, account.Points)
}

func TestRecordRecycling_RejectsNonPositivePoints(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	service := newTestService(db, now)

	for _, points := range []int{0, -5} {
		_, err := service.RecordRecycling(context.Background(), DepositInput{
			CardUID:    "04A1B2C3D4",
			Points:     points,
			ObjectType: "plastico",
		})
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	}
}

func TestRecordRecycling_UnknownAccount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	_, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "DEADBEEF",
		Points:     10,
		ObjectType: "lata",
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestRecordRecycling_InactiveAccount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	createAccount(t, db, &models.Account{
		CardUID:   "04FFEE0011",
		FirstName: "Luis",
		LastName:  "Mora",
		Email:     "luis@campus.edu",
		Active:    false,
	})

	_, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04FFEE0011",
		Points:     10,
		ObjectType: "lata",
	})
	assert.ErrorIs(t, err, models.ErrAccountInactive)

	// Nothing was recorded
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordRecycling_UnknownObjectTypeUsesDefaultImpact(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Active:    true,
	})

	result, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04A1B2C3D4",
		Points:     10,
		ObjectType: "foo",
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.02, result.Impact.WeightKG, 1e-9)
	assert.InDelta(t, 0.04, result.Impact.CO2AvoidedKG, 1e-9)
}

func TestRecordRecycling_StreakRules(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		lastActivity *time.Time
		streak       int
		wantStreak   int
	}{
		{
			name:       "first ever event starts at one",
			streak:     0,
			wantStreak: 1,
		},
		{
			name:         "next day extends",
			lastActivity: timePtr(now.Add(-24 * time.Hour)),
			streak:       3,
			wantStreak:   4,
		},
		{
			name:         "gap resets to one",
			lastActivity: timePtr(now.Add(-48 * time.Hour)),
			streak:       9,
			wantStreak:   1,
		},
		{
			name:         "same day unchanged",
			lastActivity: timePtr(now.Add(-2 * time.Hour)),
			streak:       3,
			wantStreak:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := newTestService(db, now)

			createAccount(t, db, &models.Account{
				CardUID:        "04A1B2C3D4",
				FirstName:      "Ana",
				LastName:       "Torres",
				Email:          "ana@campus.edu",
				StreakDays:     tt.streak,
				LastActivityAt: tt.lastActivity,
				Active:         true,
			})

			result, err := service.RecordRecycling(context.Background(), DepositInput{
				CardUID:    "04A1B2C3D4",
				Points:     10,
				ObjectType: "plastico",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, result.StreakDays)
		})
	}
}

func TestRecordRecycling_LevelRecomputedOnThreshold(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Points:    85,
		Level:     1,
		Active:    true,
	})

	result, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04A1B2C3D4",
		Points:     15,
		ObjectType: "botella",
	})
	require.NoError(t, err)

	assert.Equal(t, 100, result.Balance)
	assert.Equal(t, 2, result.Level)
}

func TestRecordRecycling_GrantsBadgeOnceAtThreshold(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Points:    85,
		Level:     1,
		Active:    true,
	})
	require.NoError(t, db.Create(&models.Badge{
		Name:          "Centenario",
		ConditionType: models.BadgeConditionPointTotal,
		Threshold:     100,
		Active:        true,
	}).Error)

	// Crossing 100 points grants the badge in the same operation
	result, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04A1B2C3D4",
		Points:     15,
		ObjectType: "plastico",
	})
	require.NoError(t, err)
	require.Len(t, result.BadgesGranted, 1)
	assert.Equal(t, "Centenario", result.BadgesGranted[0].Name)

	// A further deposit with the badge already held grants nothing new
	result, err = service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04A1B2C3D4",
		Points:     10,
		ObjectType: "plastico",
	})
	require.NoError(t, err)
	assert.Empty(t, result.BadgesGranted)

	var grants int64
	require.NoError(t, db.Model(&models.AccountBadge{}).Count(&grants).Error)
	assert.Equal(t, int64(1), grants)
}

func TestRecordRecycling_RollsBackOnBadgeFailure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Active:    true,
	})

	// Dropping the grants table makes badge evaluation fail mid-transaction
	require.NoError(t, db.Migrator().DropTable(&models.AccountBadge{}))
	require.NoError(t, db.Create(&models.Badge{
		Name:          "Primer Paso",
		ConditionType: models.BadgeConditionRecycleCount,
		Threshold:     1,
		Active:        true,
	}).Error)

	_, err := service.RecordRecycling(context.Background(), DepositInput{
		CardUID:    "04A1B2C3D4",
		Points:     10,
		ObjectType: "plastico",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInternal))

	// The whole unit rolled back: no points, no transaction row
	var account models.Account
	require.NoError(t, db.First(&account, "card_uid = ?", "04A1B2C3D4").Error)
	assert.Zero(t, account.Points)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetHistory_UnknownAccount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	service := newTestService(db, time.Now().UTC())

	_, err := service.GetHistory(context.Background(), 999, 10)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestGetHistory_ReturnsNewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	service := newTestService(db, now)

	account := createAccount(t, db, &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Active:    true,
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Transaction{
			AccountID:     account.ID,
			ObjectType:    "plastico",
			PointsAwarded: 10,
			CreatedAt:     now.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	history, err := service.GetHistory(context.Background(), account.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
