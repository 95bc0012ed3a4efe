package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rideops/commission-service/internal/domain/models"
)

// PeriodBuilder provides fluent API for building test billing periods.
type PeriodBuilder struct {
	period *models.BillingPeriod
}

// NewPeriod creates a new period builder with sensible defaults: a 15-day
// open period starting 2026-01-01 UTC.
func NewPeriod() *PeriodBuilder {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	return &PeriodBuilder{
		period: &models.BillingPeriod{
			ID:              uuid.New().String(),
			Start:           start,
			End:             start.AddDate(0, 0, 15),
			Status:          models.PeriodOpen,
			TotalCommission: decimal.Zero,
			TotalRevenue:    decimal.Zero,
			Version:         0,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
}

func (b *PeriodBuilder) WithID(id string) *PeriodBuilder {
	b.period.ID = id
	return b
}

func (b *PeriodBuilder) WithRange(start, end time.Time) *PeriodBuilder {
	b.period.Start = start
	b.period.End = end
	return b
}

func (b *PeriodBuilder) WithStatus(status models.PeriodStatus) *PeriodBuilder {
	b.period.Status = status
	return b
}

// Closed marks the period closed with the given totals
func (b *PeriodBuilder) Closed(commission, revenue decimal.Decimal, enterprises int32) *PeriodBuilder {
	closedAt := b.period.End
	b.period.Status = models.PeriodClosed
	b.period.TotalCommission = commission
	b.period.TotalRevenue = revenue
	b.period.EnterpriseCount = enterprises
	b.period.ClosedAt = &closedAt
	b.period.Version++
	return b
}

func (b *PeriodBuilder) WithVersion(version int32) *PeriodBuilder {
	b.period.Version = version
	return b
}

// Build returns the built period
func (b *PeriodBuilder) Build() *models.BillingPeriod {
	p := *b.period
	return &p
}
