//nolint:noctx // Test file uses http.NewRequest for simplicity
package accountsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ecocampus/rvm-backend/internal/models"
	"github.com/ecocampus/rvm-backend/internal/service/accounts"
	"github.com/ecocampus/rvm-backend/internal/service/leaderboard"
	"github.com/ecocampus/rvm-backend/pkg/logger"
)

// Mock Account Service
type mockAccountService struct {
	accounts    map[uint]*models.Account
	registerErr error
	nextID      uint
}

func newMockAccountService() *mockAccountService {
	return &mockAccountService{accounts: make(map[uint]*models.Account), nextID: 1}
}

func (m *mockAccountService) Register(_ context.Context, in accounts.RegisterInput) (*models.Account, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	account := &models.Account{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		CardUID:   models.NormalizeCardUID(in.CardUID),
		Points:    50,
		Level:     1,
		Active:    true,
	}
	account.ID = m.nextID
	m.nextID++
	m.accounts[account.ID] = account
	return account, nil
}

func (m *mockAccountService) GetByID(_ context.Context, id uint) (*models.Account, error) {
	account, exists := m.accounts[id]
	if !exists {
		return nil, models.ErrAccountNotFound
	}
	return account, nil
}

func (m *mockAccountService) LinkCard(_ context.Context, accountID uint, cardUID string) (*models.Account, error) {
	account, exists := m.accounts[accountID]
	if !exists {
		return nil, models.ErrAccountNotFound
	}
	if !account.LinkCard(cardUID) {
		return nil, models.ErrInvalidInput
	}
	return account, nil
}

func (m *mockAccountService) Deactivate(_ context.Context, accountID uint) error {
	account, exists := m.accounts[accountID]
	if !exists {
		return models.ErrAccountNotFound
	}
	account.Active = false
	return nil
}

// Mock Stats Service
type mockStatsService struct {
	stats map[uint]*leaderboard.AccountStats
}

func (m *mockStatsService) GetAccountStats(_ context.Context, accountID uint) (*leaderboard.AccountStats, error) {
	stats, exists := m.stats[accountID]
	if !exists {
		return nil, models.ErrAccountNotFound
	}
	return stats, nil
}

// Mock Badge Service
type mockBadgeService struct {
	accountBadges map[uint][]models.AccountBadge
}

func (m *mockBadgeService) GetAccountBadges(_ context.Context, accountID uint) ([]models.AccountBadge, error) {
	badges, exists := m.accountBadges[accountID]
	if !exists {
		return nil, models.ErrAccountNotFound
	}
	return badges, nil
}

// Mock Ledger Service
type mockLedgerService struct {
	transactions map[uint][]models.Transaction
}

func (m *mockLedgerService) GetHistory(_ context.Context, accountID uint, limit int) ([]models.Transaction, error) {
	transactions, exists := m.transactions[accountID]
	if !exists {
		return nil, models.ErrAccountNotFound
	}
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

// Mock Redemption Service
type mockRedemptionService struct {
	redemptions map[uint][]models.Redemption
}

func (m *mockRedemptionService) GetHistory(_ context.Context, accountID uint) ([]models.Redemption, error) {
	redemptions, exists := m.redemptions[accountID]
	if !exists {
		return nil, models.ErrAccountNotFound
	}
	return redemptions, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockAccountService, *mockStatsService, *mockLedgerService) {
	accountService := newMockAccountService()
	statsService := &mockStatsService{stats: make(map[uint]*leaderboard.AccountStats)}
	badgeService := &mockBadgeService{accountBadges: make(map[uint][]models.AccountBadge)}
	ledgerService := &mockLedgerService{transactions: make(map[uint][]models.Transaction)}
	redemptionService := &mockRedemptionService{redemptions: make(map[uint][]models.Redemption)}
	log := logger.Nop()

	handler := NewHandlerWithInterfaces(accountService, statsService, badgeService, ledgerService, redemptionService, log)

	return handler, accountService, statsService, ledgerService
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1")
	api.POST("/accounts", handler.Register)
	api.GET("/accounts/:id", handler.GetAccount)
	api.GET("/accounts/:id/stats", handler.GetAccountStats)
	api.GET("/accounts/:id/badges", handler.GetAccountBadges)
	api.GET("/accounts/:id/transactions", handler.GetTransactionHistory)
	api.GET("/accounts/:id/redemptions", handler.GetRedemptionHistory)
	api.PUT("/accounts/:id/card", handler.LinkCard)
	api.DELETE("/accounts/:id", handler.Deactivate)

	return router
}

// Tests

func TestRegister_Success(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]string{
		"first_name": "Ana",
		"last_name":  "Reyes",
		"email":      "ana@uni.edu",
		"card_uid":   "04A1B2C3D4",
	})
	req, _ := http.NewRequest("POST", "/api/v1/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	account, ok := response["account"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "Ana", account["first_name"])
	assert.Equal(t, float64(50), account["points"])
}

func TestRegister_MissingFields(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]string{"first_name": "Ana"})
	req, _ := http.NewRequest("POST", "/api/v1/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	handler, accountService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	accountService.registerErr = models.ErrDuplicateAccount

	body, _ := json.Marshal(map[string]string{
		"first_name": "Ana",
		"last_name":  "Reyes",
		"email":      "ana@uni.edu",
	})
	req, _ := http.NewRequest("POST", "/api/v1/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAccount_Success(t *testing.T) {
	handler, accountService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	account := &models.Account{FirstName: "Ana", LastName: "Reyes", Points: 120, Level: 2, Active: true}
	account.ID = 1
	accountService.accounts[1] = account

	req, _ := http.NewRequest("GET", "/api/v1/accounts/1", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotNil(t, response["account"])
}

func TestGetAccount_NotFound(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/accounts/999", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAccount_InvalidID(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/accounts/abc", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "invalid account ID")
}

func TestGetAccountStats_Success(t *testing.T) {
	handler, _, statsService, _ := setupTestHandler()
	router := setupRouter(handler)

	statsService.stats[1] = &leaderboard.AccountStats{
		AccountID:    1,
		Name:         "Ana Reyes",
		Points:       120,
		Level:        2,
		Deposits:     14,
		BadgeCount:   3,
		CO2AvoidedKG: 0.56,
	}

	req, _ := http.NewRequest("GET", "/api/v1/accounts/1/stats", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotNil(t, response["stats"])
}

func TestGetAccountStats_NotFound(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/accounts/999/stats", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTransactionHistory_Success(t *testing.T) {
	handler, _, _, ledgerService := setupTestHandler()
	router := setupRouter(handler)

	ledgerService.transactions[1] = []models.Transaction{
		{AccountID: 1, PointsAwarded: 10, ObjectType: "botella", CreatedAt: time.Now()},
		{AccountID: 1, PointsAwarded: 15, ObjectType: "lata", CreatedAt: time.Now().Add(-time.Hour)},
	}

	req, _ := http.NewRequest("GET", "/api/v1/accounts/1/transactions?limit=10", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(2), response["total"])
}

func TestGetTransactionHistory_InvalidLimit(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/accounts/1/transactions?limit=0", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkCard_Success(t *testing.T) {
	handler, accountService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	account := &models.Account{CardUID: "VIRTUAL-AB12CD34EF56AA", Active: true}
	account.ID = 1
	accountService.accounts[1] = account

	body, _ := json.Marshal(map[string]string{"card_uid": "04a1b2c3d4"})
	req, _ := http.NewRequest("PUT", "/api/v1/accounts/1/card", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	linked, ok := response["account"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "04A1B2C3D4", linked["card_uid"])
}

func TestLinkCard_TooShort(t *testing.T) {
	handler, accountService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	account := &models.Account{CardUID: "VIRTUAL-AB12CD34EF56AA", Active: true}
	account.ID = 1
	accountService.accounts[1] = account

	body, _ := json.Marshal(map[string]string{"card_uid": "0A1"})
	req, _ := http.NewRequest("PUT", "/api/v1/accounts/1/card", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeactivate_Success(t *testing.T) {
	handler, accountService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	account := &models.Account{Active: true}
	account.ID = 1
	accountService.accounts[1] = account

	req, _ := http.NewRequest("DELETE", "/api/v1/accounts/1", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, account.Active)
}

func TestDeactivate_NotFound(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("DELETE", "/api/v1/accounts/999", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
