package admin

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

func newPeriodHandler(service *MockBillingService) *PeriodHandler {
	return NewPeriodHandler(service, zap.NewNop())
}

func TestClose_Success(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	period := fixtures.NewPeriod().WithID("per-1").Closed(decimal.NewFromInt(8580), decimal.NewFromInt(78000), 2).Build()
	result := &ports.ClosureResult{
		Period: period,
		Details: []*models.CommissionDetail{
			{ID: "det-1", PeriodID: "per-1", EnterpriseID: "ent-a", CommissionAmount: decimal.NewFromInt(8580)},
		},
		Warnings: []ports.AggregationWarning{
			{TripID: "trip-9", Code: domain.ErrorCodeEnterpriseUnresolved, Message: "trip trip-9 has no resolvable enterprise"},
		},
	}
	service.On("ClosePeriod", mock.Anything, "per-1", "ops").Return(result, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/periods/close", strings.NewReader(`{"period_id":"per-1","actor":"ops"}`))
	w := httptest.NewRecorder()

	handler.Close(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ClosureResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "per-1", resp.Period.ID)
	assert.Equal(t, "closed", resp.Period.Status)
	assert.Equal(t, "8580", resp.Period.TotalCommission)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "ent-a", resp.Details[0].EnterpriseID)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "ENTERPRISE_UNRESOLVED", resp.Warnings[0].Code)
	service.AssertExpectations(t)
}

func TestClose_MissingPeriodID(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/admin/periods/close", strings.NewReader(`{"actor":"ops"}`))
	w := httptest.NewRecorder()

	handler.Close(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "ClosePeriod", mock.Anything, mock.Anything, mock.Anything)
}

func TestClose_ConcurrentConflict(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("ClosePeriod", mock.Anything, "per-1", "ops").
		Return(nil, domain.ErrConcurrentClosure.WithDetail("period_id", "per-1"))

	req := httptest.NewRequest(http.MethodPost, "/admin/periods/close", strings.NewReader(`{"period_id":"per-1","actor":"ops"}`))
	w := httptest.NewRecorder()

	handler.Close(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONCURRENT_CLOSURE_CONFLICT")
}

func TestReopen_RefusedWhenSettled(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("ReopenPeriod", mock.Anything, "per-1", "ops").
		Return(nil, domain.ErrPeriodHasSettled.WithDetail("period_id", "per-1"))

	req := httptest.NewRequest(http.MethodPost, "/admin/periods/reopen", strings.NewReader(`{"period_id":"per-1","actor":"ops"}`))
	w := httptest.NewRecorder()

	handler.Reopen(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PERIOD_HAS_SETTLED_COMMISSIONS")
}

func TestCreate_Success(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	start := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	created := fixtures.NewPeriod().WithID("per-2").WithRange(start, end).Build()
	service.On("CreateNextPeriod", mock.Anything, start, end).Return(created, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/periods", strings.NewReader(`{"start":"2026-01-16","end":"2026-01-31"}`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp PeriodResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "per-2", resp.ID)
	assert.Equal(t, "open", resp.Status)
	service.AssertExpectations(t)
}

func TestCreate_InvalidDate(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/admin/periods", strings.NewReader(`{"start":"January 16","end":"2026-01-31"}`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "CreateNextPeriod", mock.Anything, mock.Anything, mock.Anything)
}

func TestList_DefaultPagination(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("ListPeriods", mock.Anything, int32(50), int32(0)).Return([]*models.BillingPeriod{
		fixtures.NewPeriod().WithID("per-1").Build(),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/periods", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "per-1")
	service.AssertExpectations(t)
}

func TestDetails_UsesPathValue(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("ListDetails", mock.Anything, "per-1").Return([]*models.CommissionDetail{
		{ID: "det-1", PeriodID: "per-1", EnterpriseID: "ent-a"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/periods/per-1/details", nil)
	req.SetPathValue("id", "per-1")
	w := httptest.NewRecorder()

	handler.Details(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ent-a")
}

func TestDetails_NotFound(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("ListDetails", mock.Anything, "missing").
		Return(nil, domain.ErrPeriodNotFound.WithDetail("period_id", "missing"))

	req := httptest.NewRequest(http.MethodGet, "/admin/periods/missing/details", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.Details(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditTrail(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("ListAuditTrail", mock.Anything, "per-1").Return([]*models.PeriodAuditEntry{
		{
			ID:          "aud-1",
			PeriodID:    "per-1",
			Action:      models.AuditClosed,
			Actor:       "ops",
			AfterTotals: models.Totals{Commission: decimal.NewFromInt(8580), Revenue: decimal.NewFromInt(78000), Enterprises: 3},
			OccurredAt:  time.Date(2026, 1, 16, 0, 5, 0, 0, time.UTC),
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/periods/per-1/audit", nil)
	req.SetPathValue("id", "per-1")
	w := httptest.NewRecorder()

	handler.AuditTrail(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "closed")
	assert.Contains(t, w.Body.String(), "ops")
}

func TestSettle_NotFound(t *testing.T) {
	service := new(MockBillingService)
	handler := newPeriodHandler(service)

	service.On("MarkSettled", mock.Anything, "per-1", "ent-x").
		Return(domain.ErrCommissionNotFound.WithDetail("enterprise_id", "ent-x"))

	req := httptest.NewRequest(http.MethodPost, "/admin/commissions/settle", strings.NewReader(`{"period_id":"per-1","enterprise_id":"ent-x"}`))
	w := httptest.NewRecorder()

	handler.Settle(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "COMMISSION_NOT_FOUND")
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code domain.ErrorCode
		want int
	}{
		{domain.ErrorCodePeriodNotFound, http.StatusNotFound},
		{domain.ErrorCodeCommissionNotFound, http.StatusNotFound},
		{domain.ErrorCodePeriodNotOpen, http.StatusConflict},
		{domain.ErrorCodePeriodNotClosed, http.StatusConflict},
		{domain.ErrorCodePeriodHasSettled, http.StatusConflict},
		{domain.ErrorCodePeriodNotContiguous, http.StatusConflict},
		{domain.ErrorCodeNoOpenPeriod, http.StatusConflict},
		{domain.ErrorCodeConcurrentClosure, http.StatusConflict},
		{domain.ErrorCodeRateNotConfigured, http.StatusUnprocessableEntity},
		{domain.ErrorCodeRateInvalid, http.StatusUnprocessableEntity},
		{domain.ErrorCodeDatabaseError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForCode(tt.code), string(tt.code))
	}
}
