package repository

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecocampus/rvm-backend/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = gormDB.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.Reward{},
		&models.Redemption{},
		&models.Badge{},
		&models.AccountBadge{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		_ = sqlDB.Close()
	})

	return &DB{DB: gormDB}
}

func createAccount(t *testing.T, db *DB, points int) *models.Account {
	t.Helper()
	account := &models.Account{
		CardUID:   "04A1B2C3D4",
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana@campus.edu",
		Points:    points,
		Level:     models.LevelForPoints(points),
		Active:    true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return account
}

func TestDebitPoints_RefusesOverdraft(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	account := createAccount(t, db, 40)

	ok, err := repo.DebitPoints(account.ID, 50)
	if err != nil {
		t.Fatalf("DebitPoints returned error: %v", err)
	}
	if ok {
		t.Fatal("Expected debit of 50 from balance 40 to be refused")
	}

	// Balance untouched
	got, err := repo.GetByID(account.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Points != 40 {
		t.Errorf("Expected balance 40, got %d", got.Points)
	}
}

func TestDebitPoints_KeepsLevelDerived(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	account := createAccount(t, db, 210)

	ok, err := repo.DebitPoints(account.ID, 150)
	if err != nil {
		t.Fatalf("DebitPoints returned error: %v", err)
	}
	if !ok {
		t.Fatal("Expected debit to succeed")
	}

	got, _ := repo.GetByID(account.ID)
	if got.Points != 60 {
		t.Errorf("Expected balance 60, got %d", got.Points)
	}
	if got.Level != 1 {
		t.Errorf("Expected level 1 after debit, got %d", got.Level)
	}
}

func TestCreditPoints_KeepsLevelDerived(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	account := createAccount(t, db, 90)

	if err := repo.CreditPoints(account.ID, 20); err != nil {
		t.Fatalf("CreditPoints returned error: %v", err)
	}

	got, _ := repo.GetByID(account.ID)
	if got.Points != 110 {
		t.Errorf("Expected balance 110, got %d", got.Points)
	}
	if got.Level != 2 {
		t.Errorf("Expected level 2 after credit, got %d", got.Level)
	}
}

func TestCreditPoints_UnknownAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)

	if err := repo.CreditPoints(999, 10); err != models.ErrAccountNotFound {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestGetByCardUIDForUpdate_WithinTransaction(t *testing.T) {
	db := setupTestDB(t)
	account := createAccount(t, db, 30)

	err := db.Transaction(func(tx *DB) error {
		repo := NewAccountRepository(tx)

		got, err := repo.GetByCardUIDForUpdate("  04a1b2c3d4 ")
		if err != nil {
			t.Fatalf("GetByCardUIDForUpdate returned error: %v", err)
		}
		if got.ID != account.ID {
			t.Errorf("Expected account %d, got %d", account.ID, got.ID)
		}
		if got.Points != 30 {
			t.Errorf("Expected balance 30, got %d", got.Points)
		}

		_, err = repo.GetByCardUIDForUpdate("FFFFFFFFFF")
		if !errors.Is(err, models.ErrAccountNotFound) {
			t.Errorf("Expected ErrAccountNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction returned error: %v", err)
	}
}

func TestDecrementStock_StopsAtZero(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	reward := &models.Reward{Name: "Cafe Gratis", PointCost: 50, Stock: 2, Active: true}
	if err := repo.Create(reward); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := repo.DecrementStock(reward.ID)
		if err != nil {
			t.Fatalf("DecrementStock returned error: %v", err)
		}
		if !ok {
			t.Fatalf("Expected decrement %d to succeed", i+1)
		}
	}

	ok, err := repo.DecrementStock(reward.ID)
	if err != nil {
		t.Fatalf("DecrementStock returned error: %v", err)
	}
	if ok {
		t.Fatal("Expected decrement at zero stock to be refused")
	}

	got, _ := repo.GetByID(reward.ID)
	if got.Stock != 0 {
		t.Errorf("Expected stock 0, got %d", got.Stock)
	}
}

func TestGrant_IdempotentPerPair(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBadgeRepository(db)
	account := createAccount(t, db, 0)

	badge := &models.Badge{Name: "Primer Paso", ConditionType: models.BadgeConditionRecycleCount, Threshold: 1, Active: true}
	if err := repo.Create(badge); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	created, err := repo.Grant(account.ID, badge.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if !created {
		t.Fatal("Expected first grant to create a record")
	}

	created, err = repo.Grant(account.ID, badge.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Repeated grant returned error: %v", err)
	}
	if created {
		t.Fatal("Expected repeated grant to be a no-op")
	}

	var count int64
	if err := db.Model(&models.AccountBadge{}).Count(&count).Error; err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 grant record, got %d", count)
	}
}

func TestGrant_DuplicateInsertMapsToDuplicatedKey(t *testing.T) {
	db := setupTestDB(t)
	account := createAccount(t, db, 0)

	badge := &models.Badge{Name: "Primer Paso", ConditionType: models.BadgeConditionRecycleCount, Threshold: 1, Active: true}
	if err := NewBadgeRepository(db).Create(badge); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	now := time.Now().UTC()
	first := &models.AccountBadge{AccountID: account.ID, BadgeID: badge.ID, EarnedAt: now}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("First insert returned error: %v", err)
	}

	// A raced insert of the same pair must surface as the gorm sentinel
	// so Grant's duplicate backstop can absorb it.
	dup := &models.AccountBadge{AccountID: account.ID, BadgeID: badge.ID, EarnedAt: now}
	err := db.Create(dup).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("Expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestVoucherCodeExists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRedemptionRepository(db)
	account := createAccount(t, db, 100)

	reward := &models.Reward{Name: "Cafe Gratis", PointCost: 50, Stock: 5, Active: true}
	if err := db.Create(reward).Error; err != nil {
		t.Fatalf("Failed to create reward: %v", err)
	}

	redemption := &models.Redemption{
		AccountID:   account.ID,
		RewardID:    reward.ID,
		PointsSpent: 50,
		VoucherCode: "ECO-AABBCCDD",
		Status:      models.RedemptionStatusPending,
	}
	if err := repo.Create(redemption); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	exists, err := repo.VoucherCodeExists("ECO-AABBCCDD")
	if err != nil {
		t.Fatalf("VoucherCodeExists returned error: %v", err)
	}
	if !exists {
		t.Error("Expected voucher code to exist")
	}

	exists, err = repo.VoucherCodeExists("ECO-00000000")
	if err != nil {
		t.Fatalf("VoucherCodeExists returned error: %v", err)
	}
	if exists {
		t.Error("Expected unknown voucher code to be absent")
	}
}

func TestSumImpact(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	account := createAccount(t, db, 0)

	other := &models.Account{
		CardUID: "04FFEE0011", FirstName: "Luis", LastName: "Mora",
		Email: "luis@campus.edu", Active: true,
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	for _, txn := range []models.Transaction{
		{AccountID: account.ID, ObjectType: "plastico", PointsAwarded: 10, WeightKG: 0.025, CO2AvoidedKG: 0.05},
		{AccountID: account.ID, ObjectType: "lata", PointsAwarded: 10, WeightKG: 0.015, CO2AvoidedKG: 0.03},
		{AccountID: other.ID, ObjectType: "plastico", PointsAwarded: 10, WeightKG: 0.025, CO2AvoidedKG: 0.05},
	} {
		rec := txn
		if err := repo.Create(&rec); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	totals, err := repo.SumImpact()
	if err != nil {
		t.Fatalf("SumImpact returned error: %v", err)
	}
	if totals.Deposits != 3 {
		t.Errorf("Expected 3 deposits, got %d", totals.Deposits)
	}
	if diff := totals.WeightKG - 0.065; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected total weight 0.065, got %f", totals.WeightKG)
	}

	mine, err := repo.SumImpactByAccount(account.ID)
	if err != nil {
		t.Fatalf("SumImpactByAccount returned error: %v", err)
	}
	if mine.Deposits != 2 {
		t.Errorf("Expected 2 deposits for account, got %d", mine.Deposits)
	}
	if diff := mine.CO2AvoidedKG - 0.08; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected account CO2 0.08, got %f", mine.CO2AvoidedKG)
	}
}

func TestTransactionRollsBackAllMutations(t *testing.T) {
	db := setupTestDB(t)
	account := createAccount(t, db, 100)

	err := db.Transaction(func(tx *DB) error {
		if _, err := NewAccountRepository(tx).DebitPoints(account.ID, 50); err != nil {
			return err
		}
		return models.ErrInternal
	})
	if err == nil {
		t.Fatal("Expected transaction to fail")
	}

	got, _ := NewAccountRepository(db).GetByID(account.ID)
	if got.Points != 100 {
		t.Errorf("Expected balance restored to 100, got %d", got.Points)
	}
}
