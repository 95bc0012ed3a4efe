package ports

import (
	"context"
	"time"

	"github.com/rideops/commission-service/internal/domain/models"
	"github.com/shopspring/decimal"
)

// RateResolver resolves the commission rate applicable to an enterprise.
// Aggregation calls Segments once per period and enterprise, never once per
// trip, so resolution cost is bounded by the number of rate changes.
type RateResolver interface {
	// Resolve returns the rate percent authoritative for the enterprise on
	// the given date. Enterprise-specific overrides take precedence over the
	// global default; RATE_NOT_CONFIGURED when neither applies.
	Resolve(ctx context.Context, enterpriseID string, date time.Time) (decimal.Decimal, error)

	// Segments partitions [start, end) at the enterprise's rate change
	// points, returning one segment per rate-validity sub-range.
	Segments(ctx context.Context, enterpriseID string, start, end time.Time) ([]models.RateSegment, error)
}

// CreateRateConfigRequest describes a new rate configuration
type CreateRateConfigRequest struct {
	EnterpriseID  string // empty for the global default
	RatePercent   decimal.Decimal
	EffectiveFrom time.Time
}

// RateConfigService manages commission rate configurations
type RateConfigService interface {
	RateResolver
	CreateConfig(ctx context.Context, req CreateRateConfigRequest) (*models.CommissionRateConfig, error)
	DeactivateConfig(ctx context.Context, id string) error
}
