package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rideops/commission-service/internal/domain/models"
)

// RateConfigBuilder provides fluent API for building test rate configs.
type RateConfigBuilder struct {
	cfg *models.CommissionRateConfig
}

// NewRateConfig creates a builder defaulting to an active global 10% rate
// effective 2025-01-01 UTC.
func NewRateConfig() *RateConfigBuilder {
	return &RateConfigBuilder{
		cfg: &models.CommissionRateConfig{
			ID:            uuid.New().String(),
			RatePercent:   decimal.NewFromInt(10),
			EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Active:        true,
			CreatedAt:     time.Now().UTC(),
		},
	}
}

func (b *RateConfigBuilder) ForEnterprise(enterpriseID string) *RateConfigBuilder {
	b.cfg.EnterpriseID = enterpriseID
	return b
}

func (b *RateConfigBuilder) WithRate(percent string) *RateConfigBuilder {
	b.cfg.RatePercent = decimal.RequireFromString(percent)
	return b
}

func (b *RateConfigBuilder) EffectiveFrom(t time.Time) *RateConfigBuilder {
	b.cfg.EffectiveFrom = t
	return b
}

func (b *RateConfigBuilder) Inactive() *RateConfigBuilder {
	b.cfg.Active = false
	return b
}

// Build returns the built rate config
func (b *RateConfigBuilder) Build() *models.CommissionRateConfig {
	c := *b.cfg
	return &c
}
