package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rideops/commission-service/internal/domain"
	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/rideops/commission-service/internal/domain/ports"
	sports "github.com/rideops/commission-service/internal/services/ports"
	"github.com/rideops/commission-service/internal/testutil/fixtures"
)

// MockRateConfigRepository mocks the rate config repository
type MockRateConfigRepository struct {
	mock.Mock
}

func (m *MockRateConfigRepository) Create(ctx context.Context, tx ports.DBTX, cfg *models.CommissionRateConfig) error {
	args := m.Called(ctx, tx, cfg)
	return args.Error(0)
}

func (m *MockRateConfigRepository) Deactivate(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockRateConfigRepository) ListApplicable(ctx context.Context, db ports.DBTX, enterpriseID string, asOf time.Time) ([]*models.CommissionRateConfig, error) {
	args := m.Called(ctx, db, enterpriseID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CommissionRateConfig), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields ...ports.Field)  {}
func (noopLogger) Error(msg string, fields ...ports.Field) {}
func (noopLogger) Warn(msg string, fields ...ports.Field)  {}
func (noopLogger) Debug(msg string, fields ...ports.Field) {}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestService_Resolve_EnterpriseOverrideWins(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	asOf := date(2026, 1, 10)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", asOf).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("11").EffectiveFrom(date(2025, 1, 1)).Build(),
		fixtures.NewRateConfig().ForEnterprise("ent-a").WithRate("8.5").EffectiveFrom(date(2025, 6, 1)).Build(),
	}, nil)

	rate, err := service.Resolve(ctx, "ent-a", asOf)

	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("8.5")), "got %s", rate)
	repo.AssertExpectations(t)
}

func TestService_Resolve_FallsBackToGlobal(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	asOf := date(2026, 1, 10)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", asOf).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("11").EffectiveFrom(date(2025, 1, 1)).Build(),
	}, nil)

	rate, err := service.Resolve(ctx, "ent-a", asOf)

	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(11)))
}

func TestService_Resolve_LatestEffectiveFromWins(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	asOf := date(2026, 1, 10)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", asOf).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("10").EffectiveFrom(date(2025, 1, 1)).Build(),
		fixtures.NewRateConfig().WithRate("12").EffectiveFrom(date(2025, 6, 1)).Build(),
	}, nil)

	rate, err := service.Resolve(ctx, "ent-a", asOf)

	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(12)))
}

func TestService_Resolve_IgnoresInactiveConfigs(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	asOf := date(2026, 1, 10)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", asOf).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("11").EffectiveFrom(date(2025, 1, 1)).Build(),
		fixtures.NewRateConfig().ForEnterprise("ent-a").WithRate("5").EffectiveFrom(date(2025, 6, 1)).Inactive().Build(),
	}, nil)

	rate, err := service.Resolve(ctx, "ent-a", asOf)

	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(11)))
}

func TestService_Resolve_NotConfigured(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	asOf := date(2026, 1, 10)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", asOf).Return([]*models.CommissionRateConfig{}, nil)

	_, err := service.Resolve(ctx, "ent-a", asOf)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateNotConfigured))

	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ent-a", domainErr.Details["enterprise_id"])
}

func TestService_Segments_SingleRate(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	start, end := date(2026, 1, 1), date(2026, 1, 16)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", end).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("11").EffectiveFrom(date(2025, 1, 1)).Build(),
	}, nil)

	segments, err := service.Segments(ctx, "ent-a", start, end)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, start, segments[0].Start)
	assert.Equal(t, end, segments[0].End)
	assert.True(t, segments[0].RatePercent.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, models.RateSourceGlobal, segments[0].Source)
	assert.Equal(t, int32(15), segments[0].Days())
}

func TestService_Segments_SplitAtOverrideEffectiveFrom(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	start, end := date(2026, 1, 1), date(2026, 1, 16)
	mid := date(2026, 1, 11)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", end).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("10").EffectiveFrom(date(2025, 1, 1)).Build(),
		fixtures.NewRateConfig().ForEnterprise("ent-a").WithRate("20").EffectiveFrom(mid).Build(),
	}, nil)

	segments, err := service.Segments(ctx, "ent-a", start, end)

	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, start, segments[0].Start)
	assert.Equal(t, mid, segments[0].End)
	assert.True(t, segments[0].RatePercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, models.RateSourceGlobal, segments[0].Source)
	assert.Equal(t, int32(10), segments[0].Days())

	assert.Equal(t, mid, segments[1].Start)
	assert.Equal(t, end, segments[1].End)
	assert.True(t, segments[1].RatePercent.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, models.RateSourceEnterprise, segments[1].Source)
	assert.Equal(t, int32(5), segments[1].Days())
}

// A global rate change that an enterprise override shadows must not split
// the enterprise's segment.
func TestService_Segments_MergesShadowedGlobalChange(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	start, end := date(2026, 1, 1), date(2026, 1, 16)
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", end).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().WithRate("11").EffectiveFrom(date(2025, 1, 1)).Build(),
		fixtures.NewRateConfig().ForEnterprise("ent-a").WithRate("8").EffectiveFrom(date(2025, 6, 1)).Build(),
		fixtures.NewRateConfig().WithRate("13").EffectiveFrom(date(2026, 1, 8)).Build(),
	}, nil)

	segments, err := service.Segments(ctx, "ent-a", start, end)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, start, segments[0].Start)
	assert.Equal(t, end, segments[0].End)
	assert.True(t, segments[0].RatePercent.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, models.RateSourceEnterprise, segments[0].Source)
}

func TestService_Segments_InvalidRange(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	_, err := service.Segments(context.Background(), "ent-a", date(2026, 1, 16), date(2026, 1, 16))

	require.Error(t, err)
	repo.AssertNotCalled(t, "ListApplicable", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Segments_NotConfiguredAtStart(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	start, end := date(2026, 1, 1), date(2026, 1, 16)
	// The only config takes effect mid-period, leaving the head uncovered.
	repo.On("ListApplicable", ctx, mock.Anything, "ent-a", end).Return([]*models.CommissionRateConfig{
		fixtures.NewRateConfig().ForEnterprise("ent-a").WithRate("8").EffectiveFrom(date(2026, 1, 8)).Build(),
	}, nil)

	_, err := service.Segments(ctx, "ent-a", start, end)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateNotConfigured))
}

func TestService_CreateConfig_Success(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	repo.On("Create", ctx, mock.Anything, mock.AnythingOfType("*models.CommissionRateConfig")).Return(nil)

	cfg, err := service.CreateConfig(ctx, sports.CreateRateConfigRequest{
		EnterpriseID:  "ent-a",
		RatePercent:   decimal.RequireFromString("8.5"),
		EffectiveFrom: date(2026, 2, 1),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, "ent-a", cfg.EnterpriseID)
	assert.True(t, cfg.Active)
	assert.Equal(t, models.RateSourceEnterprise, cfg.Source())
	assert.Equal(t, time.UTC, cfg.EffectiveFrom.Location())
	repo.AssertExpectations(t)
}

// A mid-day effective time would put a rate boundary inside a day and make
// segment day counts undercount the period; the write normalizes it away.
func TestService_CreateConfig_NormalizesEffectiveFromToDayStart(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	repo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.CommissionRateConfig")).Return(nil)

	midDay := time.Date(2026, 2, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	cfg, err := service.CreateConfig(context.Background(), sports.CreateRateConfigRequest{
		EnterpriseID:  "ent-a",
		RatePercent:   decimal.RequireFromString("12"),
		EffectiveFrom: midDay,
	})

	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 1), cfg.EffectiveFrom)
}

func TestService_CreateConfig_RejectsOutOfRangeRates(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	for _, rate := range []string{"-1", "100.01"} {
		_, err := service.CreateConfig(context.Background(), sports.CreateRateConfigRequest{
			RatePercent:   decimal.RequireFromString(rate),
			EffectiveFrom: date(2026, 2, 1),
		})
		require.Error(t, err, "rate %s", rate)
		assert.True(t, errors.Is(err, domain.ErrRateInvalid))
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_DeactivateConfig_PropagatesRepoError(t *testing.T) {
	repo := new(MockRateConfigRepository)
	service := NewService(repo, noopLogger{})

	ctx := context.Background()
	repo.On("Deactivate", ctx, mock.Anything, "cfg-1").Return(domain.ErrRateNotConfigured.WithDetail("rate_config_id", "cfg-1"))

	err := service.DeactivateConfig(ctx, "cfg-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateNotConfigured))
}
