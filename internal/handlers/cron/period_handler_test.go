package cron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/services/ports"
	"github.com/rideops/commission-service/internal/testutil/fixtures"
)

// MockBillingService mocks the billing service
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) ClosePeriod(ctx context.Context, periodID, actor string) (*ports.ClosureResult, error) {
	args := m.Called(ctx, periodID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ClosureResult), args.Error(1)
}

func (m *MockBillingService) CloseCurrentPeriod(ctx context.Context, actor string) (*ports.ClosureResult, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ClosureResult), args.Error(1)
}

func (m *MockBillingService) ReopenPeriod(ctx context.Context, periodID, actor string) (*models.BillingPeriod, error) {
	args := m.Called(ctx, periodID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BillingPeriod), args.Error(1)
}

func (m *MockBillingService) RecomputePeriod(ctx context.Context, periodID, actor string) (*ports.ClosureResult, error) {
	args := m.Called(ctx, periodID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ClosureResult), args.Error(1)
}

func (m *MockBillingService) CreateNextPeriod(ctx context.Context, start, end time.Time) (*models.BillingPeriod, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BillingPeriod), args.Error(1)
}

func (m *MockBillingService) ListPeriods(ctx context.Context, limit, offset int32) ([]*models.BillingPeriod, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BillingPeriod), args.Error(1)
}

func (m *MockBillingService) ListDetails(ctx context.Context, periodID string) ([]*models.CommissionDetail, error) {
	args := m.Called(ctx, periodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CommissionDetail), args.Error(1)
}

func (m *MockBillingService) ListAuditTrail(ctx context.Context, periodID string) ([]*models.PeriodAuditEntry, error) {
	args := m.Called(ctx, periodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PeriodAuditEntry), args.Error(1)
}

func (m *MockBillingService) MarkSettled(ctx context.Context, periodID, enterpriseID string) error {
	args := m.Called(ctx, periodID, enterpriseID)
	return args.Error(0)
}

func (m *MockBillingService) DetectStalePeriods(ctx context.Context) ([]ports.StalePeriod, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.StalePeriod), args.Error(1)
}

const testSecret = "cron-secret-123"

func newHandler(service *MockBillingService, secret string) *PeriodHandler {
	return NewPeriodHandler(service, zap.NewNop(), secret, "system")
}

func closedResult() *ports.ClosureResult {
	period := fixtures.NewPeriod().WithID("per-1").Closed(decimal.NewFromInt(8580), decimal.NewFromInt(78000), 1).Build()
	return &ports.ClosureResult{
		Period: period,
		Details: []*models.CommissionDetail{
			{ID: "det-1", PeriodID: "per-1", EnterpriseID: "ent-a"},
		},
	}
}

func TestClosePeriod_RejectsWhenNoSecretConfigured(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, "")

	req := httptest.NewRequest(http.MethodPost, "/cron/close-period", nil)
	req.Header.Set("X-Cron-Secret", "anything")
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	service.AssertNotCalled(t, "CloseCurrentPeriod", mock.Anything, mock.Anything)
}

func TestClosePeriod_RejectsWrongSecret(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/cron/close-period", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClosePeriod_MethodNotAllowed(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/cron/close-period", nil)
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestClosePeriod_HeaderAuth(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	service.On("CloseCurrentPeriod", mock.Anything, "system").Return(closedResult(), nil)

	req := httptest.NewRequest(http.MethodPost, "/cron/close-period", nil)
	req.Header.Set("X-Cron-Secret", testSecret)
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ClosePeriodResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "per-1", resp.PeriodID)
	assert.Equal(t, 1, resp.Enterprises)
	assert.Equal(t, "8580", resp.TotalCommission)
	service.AssertExpectations(t)
}

func TestClosePeriod_BearerAuth(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	service.On("CloseCurrentPeriod", mock.Anything, "system").Return(closedResult(), nil)

	req := httptest.NewRequest(http.MethodPost, "/cron/close-period", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClosePeriod_ExplicitPeriodAndActor(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	service.On("ClosePeriod", mock.Anything, "per-7", "ops@example.com").Return(closedResult(), nil)

	body := strings.NewReader(`{"period_id": "per-7", "actor": "ops@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/cron/close-period", body)
	req.Header.Set("X-Cron-Secret", testSecret)
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestClosePeriod_NoOpenPeriodConflict(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	service.On("CloseCurrentPeriod", mock.Anything, "system").Return(nil, domain.ErrNoOpenPeriod)

	req := httptest.NewRequest(http.MethodPost, "/cron/close-period", nil)
	req.Header.Set("X-Cron-Secret", testSecret)
	w := httptest.NewRecorder()

	handler.ClosePeriod(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PERIOD_NONE_OPEN")
}

func TestSweepStalePeriods(t *testing.T) {
	service := new(MockBillingService)
	handler := newHandler(service, testSecret)

	service.On("DetectStalePeriods", mock.Anything).Return([]ports.StalePeriod{
		{PeriodID: "per-1", ClosedAt: time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), EditedTrips: []string{"trip-9"}},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/cron/sweep-stale", nil)
	req.Header.Set("X-Cron-Secret", testSecret)
	w := httptest.NewRecorder()

	handler.SweepStalePeriods(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SweepStaleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.StalePeriods, 1)
	assert.Equal(t, "per-1", resp.StalePeriods[0].PeriodID)
}

func TestHealthCheck(t *testing.T) {
	handler := newHandler(new(MockBillingService), testSecret)

	req := httptest.NewRequest(http.MethodGet, "/cron/health", nil)
	w := httptest.NewRecorder()

	handler.HealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
